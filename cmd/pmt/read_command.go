package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pmt/internal/catalog"
	"pmt/internal/project"
	"pmt/internal/services"
)

func newReadCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "read <reader> [key=value ...]",
		Short: "Read a source into a serialized project document",
		Long: "Run a reader and write the resulting project document to --output, or to stdout\n" +
			"when --output is omitted. Reader arguments are key=value pairs; see `pmt readers`.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			readerArgs, err := services.ParseArgs(args[1:])
			if err != nil {
				return err
			}
			r, err := catalog.Readers().New(args[0], cfg, logger)
			if err != nil {
				return err
			}
			p, err := r.Read(cmd.Context(), readerArgs)
			if err != nil {
				return err
			}
			for _, w := range p.Metadata.Warnings {
				if w.Line > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: line %d: %s (%s)\n", w.Line, w.Message, w.Code)
				} else {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s (%s)\n", w.Message, w.Code)
				}
			}

			if outputPath == "" {
				data, err := project.Marshal(p)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := project.WriteFile(outputPath, p); err != nil {
				return err
			}
			stats := p.Stats()
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"project":   p.Name,
					"output":    outputPath,
					"sequences": stats.Sequences,
					"shots":     stats.Shots,
					"assets":    stats.Assets,
					"warnings":  stats.Warnings,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s to %s (%d sequences, %d shots, %d assets, %d warnings)\n",
				p.Name, outputPath, stats.Sequences, stats.Shots, stats.Assets, stats.Warnings)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Project document to write")
	return cmd
}
