package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JeredArc/jeredmgr/internal/confirm"
)

var statusCmd = &cobra.Command{
	Use:   "status [selector]",
	Short: "Show the live state of projects",
	Long: `Probe the backend of each selected project and report whether it
is running. Projects without a status probe, such as script bundles
with no status script, report unknown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	orch, cleanup, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := orch.Store().Resolve(selectorArg(args))
	if err != nil {
		return err
	}

	running := color.New(color.FgGreen).SprintFunc()
	stopped := color.New(color.FgRed).SprintFunc()
	unknown := color.New(color.FgYellow).SprintFunc()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tENABLED\tSTATUS")
	for _, r := range records {
		state, err := orch.Status(cmd.Context(), r)
		display := unknown("unknown")
		switch {
		case err != nil:
			display = unknown(fmt.Sprintf("error: %v", err))
		case state == confirm.StateRunning:
			display = running("running")
		case state == confirm.StateStopped:
			display = stopped("stopped")
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", r.ID, r.TypeName(), r.Enabled, display)
	}
	return w.Flush()
}
