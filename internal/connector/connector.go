package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"pmt/internal/fileutil"
	"pmt/internal/history"
	"pmt/internal/logging"
	"pmt/internal/project"
	"pmt/internal/reader"
	"pmt/internal/services"
	"pmt/internal/textutil"
	"pmt/internal/writer"
)

// Mode selects where the writer runs.
type Mode string

const (
	// ModeDirect runs reader and writer in this process.
	ModeDirect Mode = "direct"
	// ModeHost runs the writer inside a target host process through the bridge.
	ModeHost Mode = "host"
)

// Options configures a Connector.
type Options struct {
	Mode             Mode
	WorkDir          string
	OutputDir        string
	TemplateProject  string
	ProjectFileExt   string
	KeepIntermediate bool
	Host             HostOptions
	Observer         Observer
	Recorder         Recorder
	Logger           *slog.Logger
}

// Request is one translation.
type Request struct {
	Reader     reader.Reader
	ReaderArgs services.Args
	Writer     writer.Writer
	WriterArgs services.Args
	// Output is the final project location. Empty means
	// <OutputDir>/<project name>.
	Output string
}

// Outcome summarizes a finished translation.
type Outcome struct {
	RunID        string         `json:"run_id"`
	State        State          `json:"state"`
	Mode         Mode           `json:"mode"`
	Project      string         `json:"project,omitempty"`
	Output       string         `json:"output,omitempty"`
	Intermediate string         `json:"intermediate,omitempty"`
	Workspace    string         `json:"workspace,omitempty"`
	Warnings     int            `json:"warnings"`
	Result       *writer.Result `json:"result,omitempty"`
	Transitions  []State        `json:"transitions"`
}

// Connector drives reader -> writer translations.
type Connector struct {
	opts   Options
	logger *slog.Logger
}

// New returns a Connector.
func New(opts Options) *Connector {
	if opts.Mode == "" {
		opts.Mode = ModeDirect
	}
	return &Connector{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "connector")}
}

// run tracks the state of one translation.
type run struct {
	c        *Connector
	ctx      context.Context
	id       string
	state    State
	outcome  *Outcome
	stageErr *StageError
	logger   *slog.Logger
	started  time.Time
}

// Run executes req. On failure the returned error is a *StageError and the
// outcome reports the preserved workspace.
func (c *Connector) Run(ctx context.Context, req Request) (*Outcome, error) {
	if req.Reader == nil || req.Writer == nil {
		return nil, errors.New("connector: reader and writer are required")
	}
	if c.opts.Mode != ModeDirect && c.opts.Mode != ModeHost {
		return nil, fmt.Errorf("connector: unsupported mode %q", c.opts.Mode)
	}

	id := uuid.NewString()
	ctx = services.WithRunID(ctx, id)
	r := &run{
		c:       c,
		ctx:     ctx,
		id:      id,
		state:   StateIdle,
		outcome: &Outcome{RunID: id, State: StateIdle, Mode: c.opts.Mode, Transitions: []State{StateIdle}},
		logger:  logging.WithContext(ctx, c.logger),
		started: time.Now(),
	}
	r.record(func(rec Recorder) error {
		return rec.Begin(ctx, history.Run{
			ID:        id,
			Reader:    req.Reader.Name(),
			Writer:    req.Writer.Name(),
			Mode:      string(c.opts.Mode),
			State:     string(StateIdle),
			StartedAt: r.started.UTC(),
		})
	})

	err := r.execute(req)
	if err != nil {
		r.fail(err)
		return r.outcome, r.finish(err)
	}
	return r.outcome, r.finish(nil)
}

func (r *run) execute(req Request) error {
	opts := r.c.opts

	if err := r.enter(StatePreparingWorkspace); err != nil {
		return err
	}
	if req.Output != "" {
		if err := checkOutputFree(req.Output); err != nil {
			return err
		}
	}
	ws, err := prepareWorkspace(opts.WorkDir, opts.TemplateProject)
	if ws != nil {
		r.outcome.Workspace = ws.root
	}
	if err != nil {
		return err
	}

	if err := r.enter(StateRunningReader); err != nil {
		return err
	}
	p, err := req.Reader.Read(r.stageCtx(), req.ReaderArgs)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	stats := p.Stats()
	r.outcome.Project = p.Name
	r.outcome.Warnings = stats.Warnings
	r.logger.Info("project read",
		logging.String("reader", req.Reader.Name()),
		logging.String("project", p.Name),
		logging.Int("sequences", stats.Sequences),
		logging.Int("shots", stats.Shots),
		logging.Int("assets", stats.Assets),
		logging.Int("warnings", stats.Warnings),
	)

	writerArgs := req.WriterArgs
	if writerArgs.String("target", "") == "" {
		writerArgs = writerArgs.With("target", ws.projectDir())
	}

	if opts.Mode == ModeHost || opts.KeepIntermediate {
		if err := r.enter(StateSerializing); err != nil {
			return err
		}
		if err := project.WriteFile(ws.projectFile(), p); err != nil {
			return err
		}
	}

	var result *writer.Result
	if opts.Mode == ModeHost {
		if err := r.enter(StateLaunchingTargetHost); err != nil {
			return err
		}
		host, err := startHost(opts.Host, ws, r.id, req.Writer.Name(), writerArgs, r.logger)
		if err != nil {
			return err
		}
		if err := r.enter(StateRunningWriter); err != nil {
			host.kill()
			return err
		}
		if result, err = host.wait(r.stageCtx(), opts.Host.Timeout); err != nil {
			return err
		}
	} else {
		if err := r.enter(StateRunningWriter); err != nil {
			return err
		}
		if result, err = req.Writer.Write(r.stageCtx(), p, writerArgs); err != nil {
			return err
		}
	}
	r.outcome.Result = result

	if err := r.enter(StateFinalizing); err != nil {
		return err
	}
	output := req.Output
	if output == "" {
		output = filepath.Join(opts.OutputDir, textutil.SanitizeFileName(p.Name))
	}
	if err := ws.finalize(output, p.Name, opts.ProjectFileExt); err != nil {
		return err
	}
	r.outcome.Output = output
	if opts.KeepIntermediate {
		intermediate := output + "." + intermediateName
		if err := fileutil.CopyFile(ws.projectFile(), intermediate); err != nil {
			return fmt.Errorf("keep intermediate project: %w", err)
		}
		r.outcome.Intermediate = intermediate
	}
	if err := ws.remove(); err != nil {
		r.logger.Warn("failed to remove workspace", logging.String("workspace", ws.root), logging.Error(err))
	} else {
		r.outcome.Workspace = ""
	}
	return r.enter(StateDone)
}

func (r *run) stageCtx() context.Context {
	return services.WithStage(r.ctx, string(r.state))
}

func (r *run) enter(to State) error {
	from := r.state
	if err := Transition(from, to); err != nil {
		return err
	}
	r.state = to
	r.outcome.State = to
	r.outcome.Transitions = append(r.outcome.Transitions, to)
	if obs := r.c.opts.Observer; obs != nil {
		obs.OnTransition(r.id, from, to)
	}
	r.record(func(rec Recorder) error { return rec.Transition(r.ctx, r.id, string(to)) })
	r.logger.Debug("connector transition",
		logging.String(logging.FieldEventType, "stage_transition"),
		logging.String("from", string(from)),
		logging.String("to", string(to)),
	)
	return nil
}

// fail converts err into a StageError bound to the current state and moves
// the run to Failed.
func (r *run) fail(err error) {
	stage := r.state
	kind := services.KindOf(err)
	r.stageErr = &StageError{Stage: stage, Kind: kind, Workspace: r.outcome.Workspace, Err: err}
	if stage.IsTerminal() {
		return
	}
	_ = r.enter(StateFailed)
	logging.ErrorWithContext(r.logger, "translation failed", "translation_failed",
		logging.String("failed_stage", string(stage)),
		logging.String(logging.FieldErrorKind, string(kind)),
		logging.String("workspace", r.outcome.Workspace),
		logging.String(logging.FieldErrorHint, "inspect the preserved workspace"),
		logging.Error(err),
	)
}

func (r *run) finish(err error) error {
	completion := history.Completion{
		State:     string(r.state),
		Workspace: r.outcome.Workspace,
		Output:    r.outcome.Output,
	}
	if r.outcome.Result != nil {
		completion.Counts = r.outcome.Result.Counts
	}
	stageErr := r.stageErr
	if err != nil && stageErr != nil {
		completion.ErrorKind = string(stageErr.Kind)
		completion.ErrorStage = string(stageErr.Stage)
		completion.Message = stageErr.Err.Error()
	}
	r.record(func(rec Recorder) error { return rec.Finish(r.ctx, r.id, completion) })

	if stageErr != nil {
		return stageErr
	}
	r.logger.Info("translation complete",
		logging.String(logging.FieldEventType, "translation_complete"),
		logging.String("output", r.outcome.Output),
		logging.Duration("elapsed", time.Since(r.started).Round(time.Millisecond)),
	)
	return nil
}

func (r *run) record(fn func(Recorder) error) {
	rec := r.c.opts.Recorder
	if rec == nil {
		return
	}
	if err := fn(rec); err != nil {
		r.logger.Warn("failed to record run history", logging.Error(err))
	}
}
