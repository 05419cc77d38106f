package project

import (
	"fmt"
	"sort"
	"time"
)

// Asset types produced by the built-in readers. Writers accept any non-empty type.
const (
	AssetCharacter   = "character"
	AssetProp        = "prop"
	AssetEnvironment = "environment"
	AssetUndefined   = "undefined"
)

// Project is the root of the intermediate model shared by readers and writers.
type Project struct {
	Name      string            `json:"name"`
	Sequences []*Sequence       `json:"sequences"`
	Assets    map[string]*Asset `json:"assets"`
	Metadata  Metadata          `json:"metadata"`
}

// Metadata records provenance of a Project.
type Metadata struct {
	Reader      string    `json:"reader"`
	Source      string    `json:"source,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	Warnings    []Warning `json:"warnings"`
}

// Warning is a recoverable ambiguity noticed while reading a source.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// Sequence is an ordered container of shots. Sequences may nest.
type Sequence struct {
	ID        string      `json:"id"`
	Name      string      `json:"name,omitempty"`
	Shots     []*Shot     `json:"shots"`
	Sequences []*Sequence `json:"sequences"`
}

// Shot is a frame range with named sub-tracks referencing assets.
type Shot struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Start    int    `json:"start"`
	Length   int    `json:"length"`
	Location string `json:"location,omitempty"`
	Lighting string `json:"lighting,omitempty"`
	// Tracks maps a sub-track name (anim, lighting, ...) to asset identifiers.
	Tracks     map[string][]string `json:"tracks"`
	Characters []CharacterRef      `json:"characters"`
}

// CharacterRef links a shot to an asset of type character.
type CharacterRef struct {
	AssetID string `json:"asset"`
}

// Asset is a reusable element referenced by shots.
type Asset struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
	// Departments maps a department name to its task names.
	Departments map[string][]string `json:"departments"`
	// Placeholder is used in place of the asset until Reference is known.
	Placeholder string `json:"placeholder,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

// New returns an empty project.
func New(name string) *Project {
	return &Project{Name: name, Assets: map[string]*Asset{}}
}

// AddSequence appends a top-level sequence.
func (p *Project) AddSequence(id, name string) *Sequence {
	seq := &Sequence{ID: id, Name: name}
	p.Sequences = append(p.Sequences, seq)
	return seq
}

// EnsureAsset returns the asset with id, creating it with the given name and type.
func (p *Project) EnsureAsset(id, name, assetType string) *Asset {
	if p.Assets == nil {
		p.Assets = map[string]*Asset{}
	}
	if existing, ok := p.Assets[id]; ok {
		return existing
	}
	asset := &Asset{ID: id, Name: name, Type: assetType}
	p.Assets[id] = asset
	return asset
}

// RemoveAsset deletes an asset and every reference to it.
func (p *Project) RemoveAsset(id string) {
	delete(p.Assets, id)
	_ = p.Walk(func(seq *Sequence, _ int) error {
		for _, shot := range seq.Shots {
			shot.removeAsset(id)
		}
		return nil
	})
}

// Warn records a recoverable ambiguity.
func (p *Project) Warn(code string, line int, format string, args ...any) {
	p.Metadata.Warnings = append(p.Metadata.Warnings, Warning{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Line:    line,
	})
}

// AddChild appends a nested sequence.
func (s *Sequence) AddChild(id, name string) *Sequence {
	child := &Sequence{ID: id, Name: name}
	s.Sequences = append(s.Sequences, child)
	return child
}

// AddShot appends a shot.
func (s *Sequence) AddShot(id string, start, length int) *Shot {
	shot := &Shot{ID: id, Start: start, Length: length}
	s.Shots = append(s.Shots, shot)
	return shot
}

// End is the first frame after the shot.
func (s *Shot) End() int {
	return s.Start + s.Length
}

// AddCharacter links a character asset once.
func (s *Shot) AddCharacter(assetID string) {
	for _, ref := range s.Characters {
		if ref.AssetID == assetID {
			return
		}
	}
	s.Characters = append(s.Characters, CharacterRef{AssetID: assetID})
}

// HasCharacter reports whether assetID is linked to the shot.
func (s *Shot) HasCharacter(assetID string) bool {
	for _, ref := range s.Characters {
		if ref.AssetID == assetID {
			return true
		}
	}
	return false
}

// AddTrackAsset references assetID from the named sub-track once.
func (s *Shot) AddTrackAsset(track, assetID string) {
	if s.Tracks == nil {
		s.Tracks = map[string][]string{}
	}
	for _, id := range s.Tracks[track] {
		if id == assetID {
			return
		}
	}
	s.Tracks[track] = append(s.Tracks[track], assetID)
}

// TrackNames returns the shot's sub-track names sorted.
func (s *Shot) TrackNames() []string {
	names := make([]string, 0, len(s.Tracks))
	for name := range s.Tracks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Shot) removeAsset(id string) {
	refs := s.Characters[:0]
	for _, ref := range s.Characters {
		if ref.AssetID != id {
			refs = append(refs, ref)
		}
	}
	s.Characters = refs
	for track, ids := range s.Tracks {
		kept := ids[:0]
		for _, v := range ids {
			if v != id {
				kept = append(kept, v)
			}
		}
		s.Tracks[track] = kept
	}
}

// Walk visits every sequence depth-first in document order.
func (p *Project) Walk(fn func(seq *Sequence, depth int) error) error {
	var visit func(seqs []*Sequence, depth int) error
	visit = func(seqs []*Sequence, depth int) error {
		for _, seq := range seqs {
			if seq == nil {
				continue
			}
			if err := fn(seq, depth); err != nil {
				return err
			}
			if err := visit(seq.Sequences, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(p.Sequences, 0)
}

// ShotRef pairs a shot with its owning sequence.
type ShotRef struct {
	Sequence *Sequence
	Shot     *Shot
}

// Shots flattens every shot in document order.
func (p *Project) Shots() []ShotRef {
	var out []ShotRef
	_ = p.Walk(func(seq *Sequence, _ int) error {
		for _, shot := range seq.Shots {
			if shot != nil {
				out = append(out, ShotRef{Sequence: seq, Shot: shot})
			}
		}
		return nil
	})
	return out
}

// AssetIDs returns asset identifiers sorted.
func (p *Project) AssetIDs() []string {
	ids := make([]string, 0, len(p.Assets))
	for id := range p.Assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats is a summary of project contents.
type Stats struct {
	Sequences int
	Shots     int
	Assets    int
	Warnings  int
}

// Stats counts sequences (including nested ones), shots, assets, and warnings.
func (p *Project) Stats() Stats {
	var st Stats
	_ = p.Walk(func(seq *Sequence, _ int) error {
		st.Sequences++
		st.Shots += len(seq.Shots)
		return nil
	})
	st.Assets = len(p.Assets)
	st.Warnings = len(p.Metadata.Warnings)
	return st
}

// Resolution is the asset reference a writer should bind for a character.
type Resolution struct {
	AssetID     string
	Reference   string
	Placeholder bool
}

// ResolveCharacter picks the concrete reference of the character asset, then its
// own placeholder, then fallback. Placeholder is set unless a concrete
// reference exists.
func (p *Project) ResolveCharacter(ref CharacterRef, fallback string) (Resolution, error) {
	asset, ok := p.Assets[ref.AssetID]
	if !ok || asset == nil {
		return Resolution{}, fmt.Errorf("character %q: no such asset", ref.AssetID)
	}
	switch {
	case asset.Reference != "":
		return Resolution{AssetID: asset.ID, Reference: asset.Reference}, nil
	case asset.Placeholder != "":
		return Resolution{AssetID: asset.ID, Reference: asset.Placeholder, Placeholder: true}, nil
	case fallback != "":
		return Resolution{AssetID: asset.ID, Reference: fallback, Placeholder: true}, nil
	default:
		return Resolution{}, fmt.Errorf("character %q: no reference or placeholder available", ref.AssetID)
	}
}
