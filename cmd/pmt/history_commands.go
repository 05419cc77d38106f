package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"pmt/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded translation runs",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	return historyCmd
}

func withHistory(cmd *cobra.Command, ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cmd.Context(), cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, ctx, func(store *history.Store) error {
				runs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if runs == nil {
						runs = []history.Run{}
					}
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					rows = append(rows, []string{
						shortID(r.ID),
						r.StartedAt.Local().Format(time.DateTime),
						r.Reader + " -> " + r.Writer,
						r.Mode,
						r.State,
						r.ErrorKind,
					})
				}
				fmt.Fprintln(out, renderTable(out, []string{"ID", "Started", "Translation", "Mode", "State", "Error"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one run by id or unique id prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, ctx, func(store *history.Store) error {
				r, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, r)
				}
				out := cmd.OutOrStdout()
				rows := [][]string{
					{"ID", r.ID},
					{"Reader", r.Reader},
					{"Writer", r.Writer},
					{"Mode", r.Mode},
					{"State", r.State},
					{"Started", r.StartedAt.Local().Format(time.DateTime)},
				}
				if r.FinishedAt != nil {
					rows = append(rows, []string{"Finished", r.FinishedAt.Local().Format(time.DateTime)})
				}
				optional := []struct{ label, value string }{
					{"Error kind", r.ErrorKind},
					{"Failed stage", r.ErrorStage},
					{"Message", r.Message},
					{"Workspace", r.Workspace},
					{"Output", r.Output},
				}
				for _, o := range optional {
					if o.value != "" {
						rows = append(rows, []string{o.label, o.value})
					}
				}
				fmt.Fprintln(out, renderTable(out, []string{"Field", "Value"}, rows, nil))
				if len(r.Counts) > 0 {
					countRows := make([][]string, 0, len(r.Counts))
					for kind, c := range r.Counts {
						countRows = append(countRows, []string{string(kind), strconv.Itoa(c.Created), strconv.Itoa(c.Updated), strconv.Itoa(c.Skipped)})
					}
					sortRows(countRows)
					fmt.Fprintln(out, renderTable(out,
						[]string{"Kind", "Created", "Updated", "Skipped"},
						countRows,
						[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
					))
				}
				return nil
			})
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete finished runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, ctx, func(store *history.Store) error {
				removed, err := store.Clear(cmd.Context(), all)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int64{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Also delete runs that never finished")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
