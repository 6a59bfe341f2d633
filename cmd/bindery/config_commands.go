package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and bootstrap configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, resolved, exists, err := config.Load(path)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			source := resolved
			if !exists {
				source = fmt.Sprintf("%s (not found, using defaults)", resolved)
			}
			fmt.Fprintf(stdout, "Config file:   %s\n", source)
			fmt.Fprintf(stdout, "Engine URL:    %s\n", cfg.Engine.BaseURL)
			fmt.Fprintf(stdout, "Download dir:  %s\n", cfg.Paths.DownloadDir)
			fmt.Fprintf(stdout, "Data dir:      %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(stdout, "Log dir:       %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(stdout, "Socket:        %s\n", cfg.Paths.SocketPath)
			fmt.Fprintf(stdout, "Log level:     %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)
			fmt.Fprintf(stdout, "Ntfy topic:    %s\n", cfg.Notifications.NtfyTopic)
			return nil
		},
	}

	var initForce bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			if ctx.configFlag != nil && strings.TrimSpace(*ctx.configFlag) != "" {
				path, err = config.ExpandPath(*ctx.configFlag)
				if err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !initForce {
				return fmt.Errorf("config file %s already exists; use --force to overwrite", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(config.SampleConfig()), 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(showCmd, initCmd)
	return configCmd
}
