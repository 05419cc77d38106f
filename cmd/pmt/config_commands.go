package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pmt/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the pmt configuration",
	}
	cmd.AddCommand(newConfigValidateCommand(ctx), newConfigInitCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		path      string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write the annotated sample configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := initTarget(path)
			if err != nil {
				return err
			}
			if !overwrite {
				_, statErr := os.Stat(target)
				if statErr == nil {
					return fmt.Errorf("config file already exists at %s (pass --overwrite to replace it)", target)
				}
				if !errors.Is(statErr, fs.ErrNotExist) {
					return fmt.Errorf("stat %s: %w", target, statErr)
				}
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			fmt.Fprintf(cmd.OutOrStdout(), "Host mode needs connector.host_command or %s.\n", config.EnvHostCommand)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Where to write the file (default ~/.config/pmt/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func initTarget(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return config.DefaultConfigPath()
	}
	expanded, err := config.ExpandPath(strings.TrimSpace(path))
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return expanded, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and print the effective settings",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, exists, err := config.Load(ctx.requestedConfigPath())
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("create configured directories: %w", err)
			}
			out := cmd.OutOrStdout()
			source := path
			if !exists {
				source = path + " (not found, using defaults)"
			}
			fmt.Fprintf(out, "Config path: %s\n", source)
			rows := [][]string{
				{"connector.mode", cfg.Connector.Mode},
				{"connector.host_command", cfg.Connector.HostCommand},
				{"connector.timeout", cfg.HostTimeout().String()},
				{"paths.work_dir", cfg.Paths.WorkDir},
				{"paths.output_dir", cfg.Paths.OutputDir},
				{"paths.data_dir", cfg.Paths.DataDir},
				{"logging.level", cfg.Logging.Level},
				{"tracking.conflict_policy", cfg.Tracking.ConflictPolicy},
				{"tracking.storage_root", cfg.Tracking.StorageRoot},
				{"engine.conflict_policy", cfg.Engine.ConflictPolicy},
				{"engine.frame_rate", strconv.Itoa(cfg.Engine.FrameRate)},
			}
			fmt.Fprintln(out, renderTable(out, []string{"Setting", "Value"}, rows, nil))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
