package screenplay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"pmt/internal/config"
	"pmt/internal/logging"
	"pmt/internal/naming"
	"pmt/internal/project"
	"pmt/internal/services"
	"pmt/internal/textutil"
)

const maxLineBytes = 1 << 20

// Reader parses plain-text screenplays.
type Reader struct {
	cfg    config.Screenplay
	logger *slog.Logger
}

// New returns a screenplay reader using cfg defaults.
func New(cfg config.Screenplay, logger *slog.Logger) *Reader {
	return &Reader{cfg: cfg, logger: logging.NewComponentLogger(logger, "screenplay")}
}

// Name implements reader.Reader.
func (r *Reader) Name() string { return "screenplay" }

// Read parses the screenplay named by the input argument.
//
// Recognized arguments: input (required), name, sequence, rules, ambiguity
// (warn or fail), keep_undefined_assets, shot_length.
func (r *Reader) Read(ctx context.Context, args services.Args) (*project.Project, error) {
	path, err := args.Required("screenplay reader", "input")
	if err != nil {
		return nil, err
	}
	opts, buildOpts, err := r.options(path, args)
	if err != nil {
		return nil, err
	}

	lines, err := readLines(ctx, path)
	if err != nil {
		return nil, err
	}
	if blank(lines) {
		return nil, services.Wrap(services.ErrSourceParse, "screenplay", "read", path+" is empty", nil)
	}

	tokens, warnings, err := Tokenize(lines, opts)
	if err != nil {
		return nil, err
	}
	p, err := Build(tokens, warnings, buildOpts)
	if err != nil {
		return nil, err
	}

	stats := p.Stats()
	r.logger.Info("screenplay parsed",
		logging.String("path", path),
		logging.Int("lines", len(lines)),
		logging.Int("shots", stats.Shots),
		logging.Int("assets", stats.Assets),
	)
	if stats.Warnings > 0 {
		logging.WarnWithContext(r.logger, "screenplay parsed with ambiguities", "screenplay_warnings",
			logging.Int("warnings", stats.Warnings),
			logging.String(logging.FieldErrorHint, "review project metadata warnings"),
			logging.String(logging.FieldImpact, "affected cues and scene numbers use best-effort values"),
		)
	}
	return p, nil
}

func (r *Reader) options(path string, args services.Args) (Options, BuildOptions, error) {
	keepUndefined, err := args.Bool("keep_undefined_assets", r.cfg.KeepUndefinedAssets)
	if err != nil {
		return Options{}, BuildOptions{}, err
	}
	shotLength, err := args.Int("shot_length", r.cfg.ShotLength)
	if err != nil {
		return Options{}, BuildOptions{}, err
	}
	if shotLength <= 0 {
		return Options{}, BuildOptions{}, fmt.Errorf("screenplay reader: shot_length must be positive, got %d", shotLength)
	}
	ambiguity := strings.ToLower(args.String("ambiguity", r.cfg.Ambiguity))
	if ambiguity != "warn" && ambiguity != "fail" && ambiguity != "" {
		return Options{}, BuildOptions{}, fmt.Errorf("screenplay reader: ambiguity must be warn or fail, got %q", ambiguity)
	}

	tmpl, err := naming.Parse("shot id", r.cfg.ShotIDTemplate, nil)
	if err != nil {
		return Options{}, BuildOptions{}, err
	}
	if err := tmpl.Validate("count"); err != nil {
		return Options{}, BuildOptions{}, err
	}

	name := args.String("name", "")
	if name == "" {
		name = textutil.ProjectName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	if name == "" {
		name = "screenplay"
	}

	opts := Options{
		KeepAllSpeakers: r.cfg.MultipleCharacters == "keep_all",
		NameWords:       r.cfg.CharacterNameWords,
		Rules:           args.String("rules", r.cfg.Rules),
	}
	build := BuildOptions{
		Name:                name,
		Source:              path,
		SequenceID:          args.String("sequence", r.cfg.SequenceID),
		ShotID:              tmpl,
		InitialNumber:       r.cfg.InitialNumber,
		ShotLength:          shotLength,
		KeepUndefinedAssets: keepUndefined,
		FailOnAmbiguity:     ambiguity == "fail",
	}
	return opts, build, nil
}

func readLines(ctx context.Context, path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrSourceNotFound, "screenplay", "open", path, err)
		}
		return nil, services.Wrap(services.ErrSourceParse, "screenplay", "open", path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if len(lines)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if len(lines) == 0 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if !utf8.ValidString(line) {
			return nil, services.Wrap(services.ErrSourceParse, "screenplay", "read",
				fmt.Sprintf("%s: line %d is not valid UTF-8", path, len(lines)+1), nil)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrSourceParse, "screenplay", "read", path, err)
	}
	return lines, nil
}

func blank(lines []string) bool {
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			return false
		}
	}
	return true
}
