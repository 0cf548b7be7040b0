package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JeredArc/jeredmgr/internal/gitrepo"
	"github.com/JeredArc/jeredmgr/internal/orchestrator"
	"github.com/JeredArc/jeredmgr/internal/project"
)

var updateCmd = &cobra.Command{
	Use:   "update [selector]",
	Short: "Update projects from their sources",
	Long: `Update one or more projects. A project-supplied update script
overrides the built-in flow; otherwise the working copy is pulled
fast-forward and container images are refreshed. Each project is
restarted only if it was running before the update. Dangling images
left behind by image refreshes are pruned at the end of the batch.

With no selector, every project is updated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	orch, cleanup, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	batch, err := orch.Run(cmd.Context(), selectorArg(args), "update",
		func(ctx context.Context, r *project.Record) error {
			result, err := orch.Update(ctx, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %s\n", r.ID, describeUpdate(result))
			return nil
		})
	if err != nil {
		return err
	}

	if err := orch.CleanupDanglingImages(cmd.Context()); err != nil {
		fmt.Fprintf(out, "warning: dangling image cleanup failed: %v\n", err)
	}
	return batch.Err()
}

func describeUpdate(result orchestrator.UpdateResult) string {
	switch {
	case result.OverrideScript:
		return "updated via project script"
	case result.Sync.State == gitrepo.SyncBehind:
		desc := fmt.Sprintf("pulled %d commits (%s -> %s)",
			result.Sync.Behind, result.Sync.OldCommit, result.Sync.NewCommit)
		if result.Restarted {
			desc += ", restarted"
		}
		return desc
	case len(result.ImagesPulled) > 0:
		return fmt.Sprintf("refreshed %d images", len(result.ImagesPulled))
	default:
		return "up to date"
	}
}
