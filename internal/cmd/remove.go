package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JeredArc/jeredmgr/internal/orchestrator"
	"github.com/JeredArc/jeredmgr/internal/project"
)

var removeCmd = &cobra.Command{
	Use:     "remove <selector>",
	Aliases: []string{"rm"},
	Short:   "Remove project records",
	Long: `Remove one or more project records. An enabled project is
disabled first, which requires confirmation unless --force is given.
The project's own directory is never touched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, args[0], "remove", func(o *orchestrator.Orchestrator) orchestrator.Action {
			return func(ctx context.Context, r *project.Record) error {
				return o.Remove(ctx, r)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
