package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listRunsCmd = &cobra.Command{
	Use:   "list-runs",
	Short: "List every run recorded in the coordination store",
	RunE:  runListRuns,
}

func runListRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return newCliError(exitUsage, err)
	}
	s, err := openStore(cfg)
	if err != nil {
		return newCliError(exitUnrecoverable, err)
	}
	defer s.Close()

	runs, err := s.ListRuns()
	if err != nil {
		return newCliError(exitUnrecoverable, err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTATUS\tSOURCE\tTASKS\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n",
			r.ID, r.Status, r.SourcePath, r.CompletedTasks, r.TotalTasks,
			r.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
