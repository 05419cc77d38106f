package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"pmt/internal/logging"
	"pmt/internal/naming"
	"pmt/internal/services"
	"pmt/internal/writer"
)

// Environment passed to the target host besides EnvBridgeArgs.
const (
	EnvRunID     = "PMT_RUN_ID"
	EnvWorkspace = "PMT_WORKSPACE"
)

var hostTokens = []string{"workspace", "project_dir", "project_file", "result_file", "writer", "run_id"}

// HostOptions configures the target host process.
type HostOptions struct {
	Command string
	// Args are templates over {workspace}, {project_dir}, {project_file},
	// {result_file}, {writer}, and {run_id}.
	Args []string
	// Timeout bounds the host lifetime. Zero waits for the host to exit.
	Timeout time.Duration
}

type hostProcess struct {
	cmd        *exec.Cmd
	log        *os.File
	resultFile string
	done       chan error
	logger     *slog.Logger
}

// renderHostArgs resolves the argument templates.
func renderHostArgs(templates []string, values map[string]any) ([]string, error) {
	out := make([]string, 0, len(templates))
	for i, raw := range templates {
		tmpl, err := naming.Parse(fmt.Sprintf("connector.host_args[%d]", i), raw, services.ErrTargetConfig)
		if err != nil {
			return nil, err
		}
		if err := tmpl.Validate(hostTokens...); err != nil {
			return nil, err
		}
		arg, err := tmpl.Render(values)
		if err != nil {
			return nil, err
		}
		out = append(out, arg)
	}
	return out, nil
}

func startHost(opts HostOptions, ws *workspace, runID, writerName string, writerArgs services.Args, logger *slog.Logger) (*hostProcess, error) {
	if opts.Command == "" {
		return nil, services.Wrap(services.ErrTargetConfig, "connector", "host", "host command is not configured", nil)
	}
	args, err := renderHostArgs(opts.Args, map[string]any{
		"workspace":    ws.root,
		"project_dir":  ws.projectDir(),
		"project_file": ws.projectFile(),
		"result_file":  ws.resultFile(),
		"writer":       writerName,
		"run_id":       runID,
	})
	if err != nil {
		return nil, err
	}
	logFile, err := os.Create(ws.hostLog())
	if err != nil {
		return nil, fmt.Errorf("create host log: %w", err)
	}

	cmd := exec.Command(opts.Command, args...)
	cmd.Dir = ws.projectDir()
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = append(os.Environ(),
		EnvBridgeArgs+"="+encodeBridgeArgs(writerArgs),
		EnvRunID+"="+runID,
		EnvWorkspace+"="+ws.root,
	)
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return nil, services.Wrap(services.ErrTargetUnavailable, "connector", "host launch", opts.Command, err)
	}
	logger.Debug("target host started",
		logging.String("command", opts.Command),
		logging.Int("pid", cmd.Process.Pid),
		logging.String("log_file", ws.hostLog()),
	)

	hp := &hostProcess{cmd: cmd, log: logFile, resultFile: ws.resultFile(), done: make(chan error, 1), logger: logger}
	go func() { hp.done <- cmd.Wait() }()
	return hp, nil
}

// wait blocks until the host exits, the timeout elapses, or ctx is done. The
// host process group is killed in the latter two cases.
func (h *hostProcess) wait(ctx context.Context, timeout time.Duration) (*writer.Result, error) {
	defer h.log.Close()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var waitErr error
	select {
	case waitErr = <-h.done:
	case <-expired:
		h.kill()
		return nil, services.Wrap(services.ErrTargetTimeout, "connector", "host",
			fmt.Sprintf("target host did not finish within %s and was terminated", timeout), nil)
	case <-ctx.Done():
		h.kill()
		return nil, ctx.Err()
	}

	result, err := ReadBridgeResult(h.resultFile)
	if waitErr == nil {
		return result, err
	}
	if err != nil && !errors.Is(err, services.ErrTargetUnavailable) {
		return nil, err
	}
	return nil, services.Wrap(services.ErrTargetUnavailable, "connector", "host",
		"target host failed (see "+h.log.Name()+")", waitErr)
}

func (h *hostProcess) kill() {
	if err := killProcessGroup(h.cmd); err != nil {
		h.logger.Warn("failed to terminate target host", logging.Error(err))
	}
	<-h.done
	h.logger.Debug("target host terminated", logging.Int("pid", h.cmd.Process.Pid))
}
