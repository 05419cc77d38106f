package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"pmt/internal/fileutil"
	"pmt/internal/services"
)

const (
	// ContentMount is the engine mount point backed by <root>/Content.
	ContentMount     = "/Game"
	contentDir       = "Content"
	sequenceSuffix   = ".sequence.json"
	folderMarker     = ".keep"
	browserIndexFile = ".browser_index.json"
)

// FSBridge materializes the engine project as files under root. Sequences are
// JSON descriptors and asset folders are directories holding a marker file.
type FSBridge struct {
	root string
	mu   sync.Mutex
}

// NewFSBridge returns a bridge over the project directory root.
func NewFSBridge(root string) *FSBridge {
	return &FSBridge{root: root}
}

// Root is the project directory.
func (b *FSBridge) Root() string { return b.root }

// Ping checks that root is an existing writable directory.
func (b *FSBridge) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(b.root)
	if err != nil {
		return services.Wrap(services.ErrTargetUnavailable, "engine", "ping", b.root, err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrTargetUnavailable, "engine", "ping", b.root+" is not a directory", nil)
	}
	if err := os.MkdirAll(filepath.Join(b.root, contentDir), 0o755); err != nil {
		return services.Wrap(services.ErrTargetUnavailable, "engine", "ping", "content directory", err)
	}
	return nil
}

// LookupSequence loads a sequence descriptor.
func (b *FSBridge) LookupSequence(_ context.Context, objectPath string) (*SequenceSpec, bool, error) {
	file, err := b.diskPath(objectPath)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(file + sequenceSuffix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, services.Wrap(services.ErrTargetUnavailable, "engine", "lookup sequence", objectPath, err)
	}
	var spec SequenceSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, false, services.Wrap(services.ErrTargetUnavailable, "engine", "lookup sequence",
			objectPath+": corrupt descriptor", err)
	}
	return &spec, true, nil
}

// CreateSequenceTrack writes or replaces a sequence descriptor.
func (b *FSBridge) CreateSequenceTrack(_ context.Context, spec SequenceSpec) error {
	file, err := b.diskPath(spec.ObjectPath())
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sequence %s: %w", spec.ObjectPath(), err)
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return services.Wrap(services.ErrTargetUnavailable, "engine", "create sequence", spec.ObjectPath(), err)
	}
	if err := fileutil.WriteFileAtomic(file+sequenceSuffix, append(data, '\n'), 0o644); err != nil {
		return services.Wrap(services.ErrTargetUnavailable, "engine", "create sequence", spec.ObjectPath(), err)
	}
	return nil
}

// LookupAssetFolder reports whether folder exists.
func (b *FSBridge) LookupAssetFolder(_ context.Context, folder string) (bool, error) {
	dir, err := b.diskPath(folder)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		return info.IsDir(), nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, services.Wrap(services.ErrTargetUnavailable, "engine", "lookup folder", folder, err)
	}
}

// AddAssetReference creates folder with its marker file.
func (b *FSBridge) AddAssetReference(_ context.Context, folder string) error {
	dir, err := b.diskPath(folder)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrTargetUnavailable, "engine", "add asset folder", folder, err)
	}
	marker := filepath.Join(dir, folderMarker)
	if _, err := os.Stat(marker); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(marker, nil, 0o644); err != nil {
			return services.Wrap(services.ErrTargetUnavailable, "engine", "add asset folder", folder, err)
		}
	}
	return nil
}

// SyncBrowser merges paths into the content browser index.
func (b *FSBridge) SyncBrowser(_ context.Context, paths []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	indexPath := filepath.Join(b.root, contentDir, browserIndexFile)
	known := map[string]struct{}{}
	if data, err := os.ReadFile(indexPath); err == nil {
		var existing []string
		if err := json.Unmarshal(data, &existing); err != nil {
			return services.Wrap(services.ErrTargetUnavailable, "engine", "sync browser", "corrupt index", err)
		}
		for _, p := range existing {
			known[p] = struct{}{}
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrTargetUnavailable, "engine", "sync browser", indexPath, err)
	}
	for _, p := range paths {
		known[p] = struct{}{}
	}
	merged := make([]string, 0, len(known))
	for p := range known {
		merged = append(merged, p)
	}
	sort.Strings(merged)
	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(indexPath, append(data, '\n'), 0o644); err != nil {
		return services.Wrap(services.ErrTargetUnavailable, "engine", "sync browser", indexPath, err)
	}
	return nil
}

// diskPath maps an engine path under ContentMount to a file path.
func (b *FSBridge) diskPath(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if clean != ContentMount && !strings.HasPrefix(clean, ContentMount+"/") {
		return "", services.Wrap(services.ErrTargetConfig, "engine", "resolve path",
			fmt.Sprintf("%q is outside %s", objectPath, ContentMount), nil)
	}
	rel := strings.TrimPrefix(clean, ContentMount)
	return filepath.Join(b.root, contentDir, filepath.FromSlash(rel)), nil
}
