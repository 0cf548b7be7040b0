package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JeredArc/jeredmgr/internal/gitrepo"
)

var selfUpdateCmd = &cobra.Command{
	Use:   "self-update",
	Short: "Update the manager itself",
	Long: `Pull the manager's own install directory fast-forward. When new
commits arrive, the process is replaced with a freshly launched one
after the command finishes, so follow-up work runs the new version.`,
	Args: cobra.NoArgs,
	RunE: runSelfUpdate,
}

// restartRequested is set when self-update pulled new commits. The main
// entrypoint consults it after command dispatch to replace the process.
var restartRequested bool

// RestartRequested reports whether the current invocation must be
// replaced by a fresh process.
func RestartRequested() bool {
	return restartRequested
}

func init() {
	rootCmd.AddCommand(selfUpdateCmd)
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	orch, cleanup, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := orch.SelfUpdate(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch result.Sync.State {
	case gitrepo.SyncBehind:
		fmt.Fprintf(out, "pulled %d commits (%s -> %s), restarting\n",
			result.Sync.Behind, result.Sync.OldCommit, result.Sync.NewCommit)
	default:
		fmt.Fprintln(out, "already up to date")
	}
	restartRequested = result.RestartRequested
	return nil
}
