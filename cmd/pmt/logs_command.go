package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"pmt/internal/connector"
	"pmt/internal/history"
	"pmt/internal/logging"
	"pmt/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var host bool
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the pmt log or the target host log of a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			match := ""
			if runID != "" {
				store, err := history.Open(cmd.Context(), cfg.HistoryPath())
				if err != nil {
					return err
				}
				rec, err := store.Get(cmd.Context(), runID)
				store.Close()
				if err != nil {
					return err
				}
				match = rec.ID
				if host {
					if rec.Workspace == "" {
						return fmt.Errorf("run %s has no preserved workspace", shortID(rec.ID))
					}
					path = connector.HostLogPath(rec.Workspace)
					match = ""
				}
			} else if host {
				return errors.New("--host requires --run")
			}

			result, err := logs.Tail(path, logs.Options{Limit: lines, Match: match})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range result.Lines {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			err = logs.Follow(cmd.Context(), path, result.Offset, match, 0, func(line string) {
				fmt.Fprintln(out, line)
			})
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Only lines of this run (id or unique prefix)")
	cmd.Flags().BoolVar(&host, "host", false, "Show the preserved target host log of --run")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show (0 for all)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	return cmd
}
