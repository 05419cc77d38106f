package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"pmt/internal/config"
)

// Requirement defines an external dependency pmt relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command,omitempty"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Directory is a path pmt must be able to write to.
type Directory struct {
	Name string
	Path string
	// Create marks directories that are created on demand, so a missing
	// directory is fine as long as its nearest existing parent is writable.
	Create bool
	// ReadOnly directories only need to be readable.
	ReadOnly bool
}

// CheckDirectories reports whether each directory is a writable directory.
func CheckDirectories(dirs []Directory) []Status {
	results := make([]Status, 0, len(dirs))
	for _, dir := range dirs {
		status := Status{Name: dir.Name, Command: dir.Path, Description: "writable directory"}
		mode := uint32(unix.W_OK | unix.X_OK)
		if dir.ReadOnly {
			status.Description = "readable directory"
			mode = unix.R_OK | unix.X_OK
		}
		if detail := checkAccess(dir.Path, dir.Create, mode); detail != "" {
			status.Detail = detail
		} else {
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}

func checkAccess(path string, create bool, mode uint32) string {
	if strings.TrimSpace(path) == "" {
		return "path not configured"
	}
	probe := path
	for {
		info, err := os.Stat(probe)
		if err == nil {
			if !info.IsDir() {
				return fmt.Sprintf("%s is not a directory", probe)
			}
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return err.Error()
		}
		if !create {
			return "directory does not exist"
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			return "no existing parent directory"
		}
		probe = parent
	}
	if err := unix.Access(probe, mode); err != nil {
		return fmt.Sprintf("%s: access denied: %v", probe, err)
	}
	return ""
}

// ForConfig returns the requirements implied by cfg. The target host command
// is required only when the connector runs in host mode.
func ForConfig(cfg *config.Config) ([]Requirement, []Directory) {
	hostMode := cfg.Connector.Mode == "host"
	reqs := []Requirement{{
		Name:        "Target host",
		Command:     cfg.Connector.HostCommand,
		Description: "Runs the writer inside the target application (connector.mode = \"host\")",
		Optional:    !hostMode,
	}}
	dirs := []Directory{
		{Name: "Work directory", Path: cfg.Paths.WorkDir, Create: true},
		{Name: "Output directory", Path: cfg.Paths.OutputDir, Create: true},
		{Name: "Data directory", Path: cfg.Paths.DataDir, Create: true},
	}
	if tmpl := cfg.Connector.TemplateProject; tmpl != "" {
		dirs = append(dirs, Directory{Name: "Template project", Path: tmpl, ReadOnly: true})
	}
	return reqs, dirs
}

// Check runs every check implied by cfg.
func Check(cfg *config.Config) []Status {
	reqs, dirs := ForConfig(cfg)
	return append(CheckBinaries(reqs), CheckDirectories(dirs)...)
}

// Failed reports whether any required dependency is unavailable.
func Failed(statuses []Status) bool {
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			return true
		}
	}
	return false
}
