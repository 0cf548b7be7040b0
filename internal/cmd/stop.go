package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JeredArc/jeredmgr/internal/orchestrator"
	"github.com/JeredArc/jeredmgr/internal/project"
)

var stopCmd = &cobra.Command{
	Use:   "stop [selector]",
	Short: "Stop projects",
	Long: `Stop one or more projects and wait briefly for each to report
stopped. Stop also works on disabled projects so a leftover running
instance never becomes unreachable. With no selector, every project is
stopped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, selectorArg(args), "stop", func(o *orchestrator.Orchestrator) orchestrator.Action {
			return func(ctx context.Context, r *project.Record) error {
				return o.Stop(ctx, r)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
