package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JeredArc/jeredmgr/internal/orchestrator"
	"github.com/JeredArc/jeredmgr/internal/project"
)

var disableCmd = &cobra.Command{
	Use:   "disable <selector>",
	Short: "Uninstall a project's backend linkage and mark it disabled",
	Long: `Disable one or more projects. The backend linkage is uninstalled
and the record marked disabled. An incomplete uninstall is reported as
a warning but never blocks the disable, so a broken project can always
be brought back to a clean disabled state.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, args[0], "disable", func(o *orchestrator.Orchestrator) orchestrator.Action {
			return func(ctx context.Context, r *project.Record) error {
				return o.Disable(ctx, r)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(disableCmd)
}
