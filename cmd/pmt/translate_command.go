package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pmt/internal/catalog"
	"pmt/internal/config"
	"pmt/internal/connector"
	"pmt/internal/history"
	"pmt/internal/logging"
	"pmt/internal/services"
)

type translateOptions struct {
	readerArgs       []string
	writerArgs       []string
	mode             string
	output           string
	keepIntermediate bool
	noHistory        bool
}

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var opts translateOptions

	cmd := &cobra.Command{
		Use:   "translate <reader> <writer>",
		Short: "Read a source and write it to a target in one run",
		Long: "Run the connector: prepare a workspace, read the source, optionally serialize the\n" +
			"project and launch the target host, write, and move the finished project to its\n" +
			"output location. A failed run keeps its workspace for inspection.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			readerArgs, err := services.ParseArgs(opts.readerArgs)
			if err != nil {
				return err
			}
			writerArgs, err := services.ParseArgs(opts.writerArgs)
			if err != nil {
				return err
			}
			r, err := catalog.Readers().New(args[0], cfg, logger)
			if err != nil {
				return err
			}
			w, err := catalog.Writers().New(args[1], cfg, logger)
			if err != nil {
				return err
			}

			connOpts, err := connectorOptions(cfg, opts)
			if err != nil {
				return err
			}
			connOpts.Logger = logger
			if !ctx.jsonOutput() && isTerminal(cmd.ErrOrStderr()) {
				stderr := cmd.ErrOrStderr()
				connOpts.Observer = connector.ObserverFunc(func(_ string, _, to connector.State) {
					fmt.Fprintf(stderr, "-> %s\n", to)
				})
			}
			if !opts.noHistory {
				store, err := history.Open(cmd.Context(), cfg.HistoryPath())
				if err != nil {
					logging.WarnWithContext(logger, "run history unavailable", "history_unavailable",
						logging.String(logging.FieldErrorHint, "check paths.data_dir"),
						logging.String(logging.FieldImpact, "this run will not be recorded"),
						logging.Error(err),
					)
				} else {
					defer store.Close()
					connOpts.Recorder = store
				}
			}
			if connOpts.Mode == connector.ModeHost && ctx.configPath != "" {
				if err := os.Setenv(envConfigPath, ctx.configPath); err != nil {
					return err
				}
			}

			outcome, runErr := connector.New(connOpts).Run(cmd.Context(), connector.Request{
				Reader:     r,
				ReaderArgs: readerArgs,
				Writer:     w,
				WriterArgs: writerArgs,
				Output:     opts.output,
			})
			if ctx.jsonOutput() && outcome != nil {
				if err := writeJSON(cmd, outcome); err != nil {
					return err
				}
				return runErr
			}
			if runErr != nil {
				return runErr
			}
			out := cmd.OutOrStdout()
			printResult(out, outcome.Result)
			fmt.Fprintf(out, "Project %s written to %s\n", outcome.Project, outcome.Output)
			if outcome.Intermediate != "" {
				fmt.Fprintf(out, "Intermediate document: %s\n", outcome.Intermediate)
			}
			if outcome.Warnings > 0 {
				fmt.Fprintf(out, "%d reader warnings (see log)\n", outcome.Warnings)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&opts.readerArgs, "reader-arg", "r", nil, "Reader argument key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.writerArgs, "writer-arg", "w", nil, "Writer argument key=value (repeatable)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Override connector.mode (direct or host)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Final project location (default <output_dir>/<project>)")
	cmd.Flags().BoolVar(&opts.keepIntermediate, "keep-intermediate", false, "Keep the serialized project next to the output")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record the run in the history database")
	return cmd
}

func connectorOptions(cfg *config.Config, opts translateOptions) (connector.Options, error) {
	mode := strings.ToLower(strings.TrimSpace(opts.mode))
	if mode == "" {
		mode = cfg.Connector.Mode
	}
	switch connector.Mode(mode) {
	case connector.ModeDirect, connector.ModeHost:
	default:
		return connector.Options{}, fmt.Errorf("unsupported mode %q (want direct or host)", mode)
	}
	return connector.Options{
		Mode:             connector.Mode(mode),
		WorkDir:          cfg.Paths.WorkDir,
		OutputDir:        cfg.Paths.OutputDir,
		TemplateProject:  cfg.Connector.TemplateProject,
		ProjectFileExt:   cfg.Connector.ProjectFileExt,
		KeepIntermediate: cfg.Connector.KeepIntermediate || opts.keepIntermediate,
		Host: connector.HostOptions{
			Command: cfg.Connector.HostCommand,
			Args:    cfg.Connector.HostArgs,
			Timeout: cfg.HostTimeout(),
		},
	}, nil
}
