package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pmt/internal/catalog"
)

type catalogEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func newReadersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "readers",
		Short:       "List available readers",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []catalogEntry
			for _, e := range catalog.Readers().Entries() {
				entries = append(entries, catalogEntry{Name: e.Name, Description: e.Description})
			}
			return printCatalog(cmd, ctx, entries)
		},
	}
}

func newWritersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "writers",
		Short:       "List available writers",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []catalogEntry
			for _, e := range catalog.Writers().Entries() {
				entries = append(entries, catalogEntry{Name: e.Name, Description: e.Description})
			}
			return printCatalog(cmd, ctx, entries)
		},
	}
}

func printCatalog(cmd *cobra.Command, ctx *commandContext, entries []catalogEntry) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, entries)
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Name, e.Description})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(out, []string{"Name", "Description"}, rows, nil))
	return nil
}
