package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"pmt/internal/catalog"
	"pmt/internal/config"
	"pmt/internal/deps"
	"pmt/internal/services"
	"pmt/internal/writer"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var pingWriters []string
	var writerArgs []string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check host binaries, directories, and writer targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			statuses := deps.Check(cfg)

			parsed, err := services.ParseArgs(writerArgs)
			if err != nil {
				return err
			}
			for _, name := range pingWriters {
				statuses = append(statuses, pingWriter(cmd, cfg, logger, name, parsed))
			}

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, statuses); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(statuses))
				for _, s := range statuses {
					state := "ok"
					switch {
					case !s.Available && s.Optional:
						state = "optional"
					case !s.Available:
						state = "missing"
					}
					rows = append(rows, []string{s.Name, state, s.Command, s.Detail})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out, []string{"Check", "Status", "Path", "Detail"}, rows, nil))
			}
			if deps.Failed(statuses) {
				return errors.New("one or more required checks failed")
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&pingWriters, "writer", nil, "Also check a writer's target (repeatable)")
	cmd.Flags().StringArrayVarP(&writerArgs, "arg", "a", nil, "Writer argument key=value for --writer checks (repeatable)")
	return cmd
}

func pingWriter(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, name string, args services.Args) deps.Status {
	status := deps.Status{Name: "Writer " + name, Description: "target reachable"}
	w, err := catalog.Writers().New(name, cfg, logger)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	pinger, ok := w.(writer.Pinger)
	if !ok {
		status.Optional = true
		status.Detail = "writer has no target check"
		return status
	}
	if err := pinger.Ping(cmd.Context(), args); err != nil {
		status.Detail = err.Error()
		return status
	}
	status.Available = true
	return status
}
