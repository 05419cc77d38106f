package main

import (
	"github.com/spf13/cobra"

	"pmt/internal/catalog"
	"pmt/internal/project"
	"pmt/internal/services"
)

func newWriteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "write <writer> <project.json> [key=value ...]",
		Short: "Write a serialized project document through a writer",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			writerArgs, err := services.ParseArgs(args[2:])
			if err != nil {
				return err
			}
			w, err := catalog.Writers().New(args[0], cfg, logger)
			if err != nil {
				return err
			}
			p, err := project.ReadFile(args[1])
			if err != nil {
				return err
			}
			result, err := w.Write(cmd.Context(), p, writerArgs)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, result)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}
