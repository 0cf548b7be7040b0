package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JeredArc/jeredmgr/internal/orchestrator"
)

// runBatch applies one lifecycle action to every project a selector
// matches. The batch's aggregate error becomes the command's exit status.
func runBatch(cmd *cobra.Command, selector, verb string, action func(*orchestrator.Orchestrator) orchestrator.Action) error {
	orch, cleanup, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer cleanup()

	batch, err := orch.Run(cmd.Context(), selector, verb, action(orch))
	if err != nil {
		return err
	}
	return batch.Err()
}

// selectorArg returns the positional selector, defaulting to all projects.
func selectorArg(args []string) string {
	if len(args) == 0 {
		return "all"
	}
	return args[0]
}
