package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered projects",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	orch, cleanup, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := orch.Store().List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no projects registered")
		return nil
	}

	enabledTag := color.New(color.FgGreen).SprintFunc()
	disabledTag := color.New(color.Faint).SprintFunc()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATE\tPATH")
	for _, r := range records {
		state := disabledTag("disabled")
		if r.Enabled {
			state = enabledTag("enabled")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.TypeName(), state, r.Path)
	}
	return w.Flush()
}
