package connector

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"pmt/internal/fileutil"
	"pmt/internal/services"
	"pmt/internal/textutil"
)

const (
	projectDirName   = "project"
	intermediateName = "project.json"
	resultName       = "result.json"
	hostLogName      = "host.log"
)

// workspace is the temporary directory of one run:
//
//	<root>/project       working copy of the target project
//	<root>/project.json  serialized project
//	<root>/result.json   bridge result (host mode)
//	<root>/host.log      host stdout and stderr
type workspace struct {
	root string
}

func prepareWorkspace(workDir, template string) (*workspace, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	root, err := os.MkdirTemp(workDir, "pmt-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	ws := &workspace{root: root}
	if template == "" {
		if err := os.MkdirAll(ws.projectDir(), 0o755); err != nil {
			return ws, fmt.Errorf("create project dir: %w", err)
		}
		return ws, nil
	}
	if _, err := os.Stat(template); err != nil {
		return ws, services.Wrap(services.ErrTargetConfig, "connector", "template project", template, err)
	}
	if err := fileutil.CopyTree(template, ws.projectDir()); err != nil {
		return ws, fmt.Errorf("copy template project: %w", err)
	}
	return ws, nil
}

// HostLogPath is the target host output log inside a run workspace.
func HostLogPath(workspace string) string { return filepath.Join(workspace, hostLogName) }

func (w *workspace) projectDir() string { return filepath.Join(w.root, projectDirName) }
func (w *workspace) projectFile() string { return filepath.Join(w.root, intermediateName) }
func (w *workspace) resultFile() string { return filepath.Join(w.root, resultName) }
func (w *workspace) hostLog() string { return filepath.Join(w.root, hostLogName) }

// finalize renames the project file to the project name when ext is set and
// moves the working project to output.
func (w *workspace) finalize(output, projectName, ext string) error {
	if ext != "" {
		if err := renameProjectFile(w.projectDir(), projectName, ext); err != nil {
			return err
		}
	}
	if err := checkOutputFree(output); err != nil {
		return err
	}
	if err := fileutil.MoveDir(w.projectDir(), output); err != nil {
		return fmt.Errorf("move project to %s: %w", output, err)
	}
	return nil
}

func (w *workspace) remove() error {
	return os.RemoveAll(w.root)
}

func checkOutputFree(output string) error {
	_, err := os.Lstat(output)
	switch {
	case err == nil:
		return services.Wrap(services.ErrTargetConflict, "connector", "finalize", "output "+output+" already exists", nil)
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("check output %s: %w", output, err)
	}
}

func renameProjectFile(dir, projectName, ext string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scan project dir: %w", err)
	}
	want := textutil.SanitizeFileName(projectName) + ext
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}
		if entry.Name() == want {
			return nil
		}
		if err := os.Rename(filepath.Join(dir, entry.Name()), filepath.Join(dir, want)); err != nil {
			return fmt.Errorf("rename project file: %w", err)
		}
		return nil
	}
	return nil
}
