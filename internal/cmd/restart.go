package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JeredArc/jeredmgr/internal/orchestrator"
	"github.com/JeredArc/jeredmgr/internal/project"
)

var restartCmd = &cobra.Command{
	Use:   "restart [selector]",
	Short: "Restart projects",
	Long: `Restart one or more enabled projects. Disabled projects are
skipped with a warning.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, selectorArg(args), "restart", func(o *orchestrator.Orchestrator) orchestrator.Action {
			return func(ctx context.Context, r *project.Record) error {
				return o.Restart(ctx, r)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(restartCmd)
}
