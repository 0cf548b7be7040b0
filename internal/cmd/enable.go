package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JeredArc/jeredmgr/internal/orchestrator"
	"github.com/JeredArc/jeredmgr/internal/project"
)

var enableCmd = &cobra.Command{
	Use:   "enable <selector>",
	Short: "Install a project's backend linkage and mark it enabled",
	Long: `Enable one or more projects. Enabling clones the repository if one
is configured, installs the backend artifact (compose descriptor link,
systemd unit, or setup script run), and marks the record enabled. A
failed install rolls the record back to disabled.

Selectors match by exact id, by * wildcard, or "all".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, args[0], "enable", func(o *orchestrator.Orchestrator) orchestrator.Action {
			return func(ctx context.Context, r *project.Record) error {
				return o.Enable(ctx, r)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(enableCmd)
}
