package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JeredArc/jeredmgr/internal/orchestrator"
	"github.com/JeredArc/jeredmgr/internal/project"
)

var startCmd = &cobra.Command{
	Use:   "start [selector]",
	Short: "Start projects",
	Long: `Start one or more enabled projects and wait briefly for each to
report running. Disabled projects are skipped with a warning. With no
selector, every project is started.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, selectorArg(args), "start", func(o *orchestrator.Orchestrator) orchestrator.Action {
			return func(ctx context.Context, r *project.Record) error {
				return o.Start(ctx, r)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
