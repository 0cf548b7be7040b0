package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JeredArc/jeredmgr/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flagDir != "" {
		cfg.Paths.ManagedDir = flagDir
	}

	out := cmd.OutOrStdout()
	source := config.ConfigFile()
	if _, err := os.Stat(source); err != nil {
		source += " (not present, using defaults)"
	}
	fmt.Fprintf(out, "config file:      %s\n", source)
	fmt.Fprintf(out, "managed dir:      %s\n", cfg.Paths.ResolveManagedDir())
	fmt.Fprintf(out, "credential file:  %s\n", cfg.Paths.ResolveCredentialFile())
	fmt.Fprintf(out, "git binary:       %s\n", cfg.Git.Binary)
	fmt.Fprintf(out, "trusted hosts:    %v\n", cfg.Git.TrustedHosts)
	fmt.Fprintf(out, "compose command:  %s\n", cfg.Container.ComposeCommand)
	fmt.Fprintf(out, "confirm poll:     %d x %dms\n", cfg.Confirm.MaxAttempts, cfg.Confirm.IntervalMs)
	fmt.Fprintf(out, "log level:        %s (enabled: %t)\n", cfg.Logging.Level, cfg.Logging.Enabled)
	return nil
}
