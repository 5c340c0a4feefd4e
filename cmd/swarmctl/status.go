package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskswarm/swarmctl/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show a run's workers and task counts",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	runID := args[0]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return newCliError(exitUsage, err)
	}
	s, err := openStore(cfg)
	if err != nil {
		return newCliError(exitUnrecoverable, err)
	}
	defer s.Close()

	run, err := s.GetRun(runID)
	if err != nil {
		return newCliError(exitUnrecoverable, err)
	}

	tasks, err := s.ListTasks(runID)
	if err != nil {
		return newCliError(exitUnrecoverable, err)
	}
	workers, err := s.ListWorkers(runID)
	if err != nil {
		return newCliError(exitUnrecoverable, err)
	}

	var pending, inProgress, completed, failed int
	for _, t := range tasks {
		switch t.Status {
		case types.TaskStatusPending:
			pending++
		case types.TaskStatusInProgress:
			inProgress++
		case types.TaskStatusCompleted:
			completed++
		case types.TaskStatusFailed:
			failed++
		}
	}

	fmt.Printf("Run %s (%s)\n", run.ID, run.Status)
	fmt.Printf("  Source: %s\n", run.SourcePath)
	fmt.Printf("  Started: %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if !run.CompletedAt.IsZero() {
		fmt.Printf("  Completed: %s\n", run.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("  Tasks: %d pending, %d in progress, %d completed, %d failed (%d total)\n",
		pending, inProgress, completed, failed, len(tasks))

	fmt.Println("\nWorkers:")
	for _, w := range workers {
		current := "-"
		if w.CurrentTaskID != 0 {
			current = fmt.Sprintf("task %d", w.CurrentTaskID)
		}
		fmt.Printf("  worker-%d  pid=%d  %-11s  %s  heartbeat=%s\n",
			w.WorkerNum, w.PID, w.Status, current, w.LastHeartbeat.Format("15:04:05"))
	}

	return nil
}
