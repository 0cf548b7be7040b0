package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JeredArc/jeredmgr/internal/backend"
)

var logsCmd = &cobra.Command{
	Use:   "logs <id>",
	Short: "View project logs",
	Long: `Show logs for a single project: compose logs for container
stacks, the journal for services, and the project's logs script or
project.log file for script bundles.

Examples:
  # Show the last 50 lines
  jeredmgr logs blog

  # Follow logs in real-time
  jeredmgr logs blog -f

  # Show the last 200 lines
  jeredmgr logs blog -n 200`,
	Args: cobra.ExactArgs(1),
	RunE: runLogs,
}

var (
	logsTail   int
	logsFollow bool
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "lines", "n", 50, "Number of lines to show")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	orch, cleanup, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer cleanup()

	r, err := orch.Store().ResolveOne(args[0])
	if err != nil {
		return err
	}
	return orch.Logs(cmd.Context(), r, backend.LogOptions{
		Lines:  logsTail,
		Follow: logsFollow,
	})
}
