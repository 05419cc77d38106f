package main

import (
	"os"

	"github.com/spf13/cobra"

	"pmt/internal/catalog"
	"pmt/internal/connector"
	"pmt/internal/services"
)

func newBridgeCommand(ctx *commandContext) *cobra.Command {
	var writerName, projectFile, resultFile, target string
	var extra []string

	cmd := &cobra.Command{
		Use:    "bridge",
		Short:  "Run a writer inside the target host (invoked by the connector)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			writerArgs, err := connector.DecodeBridgeArgs(os.Getenv(connector.EnvBridgeArgs))
			if err != nil {
				return err
			}
			overrides, err := services.ParseArgs(extra)
			if err != nil {
				return err
			}
			for key, value := range overrides {
				writerArgs = writerArgs.With(key, value)
			}
			if target != "" {
				writerArgs = writerArgs.With("target", target)
			}
			w, err := catalog.Writers().New(writerName, cfg, logger)
			if err != nil {
				if resultFile != "" {
					_ = connector.WriteBridgeResult(resultFile, nil, err)
				}
				return err
			}
			result, err := connector.RunBridge(cmd.Context(), connector.BridgeRequest{
				Writer:      w,
				ProjectFile: projectFile,
				ResultFile:  resultFile,
				Args:        writerArgs,
			})
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

	cmd.Flags().StringVar(&writerName, "writer", "", "Writer to run")
	cmd.Flags().StringVar(&projectFile, "project-file", "", "Serialized project document")
	cmd.Flags().StringVar(&resultFile, "result-file", "", "Where to record the outcome")
	cmd.Flags().StringVar(&target, "target", "", "Writer target (overrides the target argument)")
	cmd.Flags().StringArrayVarP(&extra, "arg", "a", nil, "Writer argument key=value (repeatable)")
	_ = cmd.MarkFlagRequired("writer")
	_ = cmd.MarkFlagRequired("project-file")
	_ = cmd.MarkFlagRequired("result-file")
	return cmd
}
