package engine

import (
	"context"
	"path"
	"slices"
	"strings"
)

// HostBridge is the surface of the engine editor the writer drives. Lookups
// report found=false without error for missing entities.
type HostBridge interface {
	Ping(ctx context.Context) error
	LookupSequence(ctx context.Context, objectPath string) (*SequenceSpec, bool, error)
	CreateSequenceTrack(ctx context.Context, spec SequenceSpec) error
	LookupAssetFolder(ctx context.Context, folder string) (bool, error)
	AddAssetReference(ctx context.Context, folder string) error
	SyncBrowser(ctx context.Context, paths []string) error
}

// Sequence roles.
const (
	RoleMaster      = "master"
	RoleShot        = "shot"
	RoleSubsequence = "subsequence"
)

// SequenceSpec describes one level sequence asset.
type SequenceSpec struct {
	Dir       string `json:"dir"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	FrameRate int    `json:"frame_rate"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	PreRoll   int    `json:"pre_roll"`
	// Sections lays out shot sequences on the master sequence.
	Sections []Section `json:"sections,omitempty"`
	Camera   *Camera   `json:"camera,omitempty"`
	Bindings []Binding `json:"bindings,omitempty"`
	// Subsequences are the object paths of per-track subsequences.
	Subsequences []string `json:"subsequences,omitempty"`
	// Assets lists references spawned by a subsequence.
	Assets []string `json:"assets,omitempty"`
}

// Section places a shot sequence on the master timeline.
type Section struct {
	Shot     string `json:"shot"`
	Sequence string `json:"sequence"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

// Camera is the camera binding of a shot sequence.
type Camera struct {
	Class string `json:"class"`
	Name  string `json:"name"`
}

// Binding spawns a character actor in a shot sequence.
type Binding struct {
	Asset       string `json:"asset"`
	Reference   string `json:"reference"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// ObjectPath is the engine path of the sequence asset.
func (s SequenceSpec) ObjectPath() string {
	return objectPath(s.Dir, s.Name)
}

func objectPath(dir, name string) string {
	return path.Join("/", strings.TrimSuffix(dir, "/"), name)
}

// Equal reports whether two specs describe the same asset content.
func (s SequenceSpec) Equal(o SequenceSpec) bool {
	if s.Dir != o.Dir || s.Name != o.Name || s.Role != o.Role || s.FrameRate != o.FrameRate ||
		s.Start != o.Start || s.End != o.End || s.PreRoll != o.PreRoll {
		return false
	}
	if (s.Camera == nil) != (o.Camera == nil) || (s.Camera != nil && *s.Camera != *o.Camera) {
		return false
	}
	return slices.Equal(s.Sections, o.Sections) &&
		slices.Equal(s.Bindings, o.Bindings) &&
		slices.Equal(s.Subsequences, o.Subsequences) &&
		slices.Equal(s.Assets, o.Assets)
}
