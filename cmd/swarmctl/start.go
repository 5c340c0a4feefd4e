package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskswarm/swarmctl/pkg/coordinator"
	"github.com/taskswarm/swarmctl/pkg/scheduler"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Analyze a devplan and run it to completion",
	Long: `start parses a devplan markdown file into file-scoped tasks, spawns
worker processes to execute them in parallel, and merges the results
into the target project once every task is terminal.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().String("devplan", "", "Path to the devplan markdown file (required)")
	startCmd.Flags().String("project", "", "Destination project name under $SWARM_PROJECTS_BASE")
	startCmd.Flags().String("project-root", ".", "Git repository worker worktrees branch off of")
	startCmd.Flags().Int("workers", 0, "Worker count (default: devplan front matter, else config MaxWorkers)")
	_ = startCmd.MarkFlagRequired("devplan")
}

func runStart(cmd *cobra.Command, args []string) error {
	devplanPath, _ := cmd.Flags().GetString("devplan")
	projectName, _ := cmd.Flags().GetString("project")
	projectRoot, _ := cmd.Flags().GetString("project-root")
	workers, _ := cmd.Flags().GetInt("workers")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return newCliError(exitUsage, err)
	}
	// Resolution order is CLI flag > devplan front matter > cfg.MaxWorkers;
	// leave workers at 0 here when unset so the coordinator can apply the
	// devplan's own override before falling back to cfg.MaxWorkers.

	s, err := openStore(cfg)
	if err != nil {
		return newCliError(exitUnrecoverable, err)
	}
	defer s.Close()

	c := coordinator.New(cfg, s)
	defer c.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, waiting for the current scheduler sweep to stop...")
		cancel()
	}()

	fmt.Printf("Starting swarm run: devplan=%s\n", devplanPath)
	result, err := c.Start(ctx, devplanPath, projectRoot, projectName, workers)
	if err != nil {
		return newCliError(exitUnrecoverable, err)
	}

	printResult(result)
	return exitForOutcome(result.Outcome)
}

func printResult(result coordinator.Result) {
	fmt.Printf("\nRun %s\n", result.RunID)
	fmt.Printf("  Tasks added: %d, skipped (already completed): %d\n", result.Analysis.Added, result.Analysis.Skipped)
	fmt.Printf("  Outcome: %s\n", result.Outcome)

	if !result.Merged {
		return
	}

	fmt.Printf("✓ Merge complete: %d/%d tasks completed, %d failed\n",
		result.Merge.CompletedTasks, result.Merge.TotalTasks, result.Merge.FailedTasks)
	for _, w := range result.Merge.Workers {
		status := "clean merge"
		if w.Conflicted {
			status = fmt.Sprintf("conflict resolved by file copy (%d copied, %d skipped)", len(w.CopiedFiles), len(w.SkippedFiles))
		}
		fmt.Printf("  worker-%d (%s): %s\n", w.WorkerNum, w.Branch, status)
	}
	if len(result.Merge.MissingFiles) > 0 {
		fmt.Println("⚠ Verification warnings, files recorded but not found in the merged project:")
		for _, f := range result.Merge.MissingFiles {
			fmt.Printf("  - %s\n", f)
		}
	}
}

// exitForOutcome maps a scheduler outcome onto the process exit codes.
func exitForOutcome(outcome scheduler.Outcome) error {
	switch outcome {
	case scheduler.OutcomeDone:
		return nil
	case scheduler.OutcomeResumeRequired:
		return newCliError(exitResumeRequired, fmt.Errorf("run requires resume: no alive workers remain"))
	case scheduler.OutcomeRunTimeout:
		return newCliError(exitRunInterrupted, fmt.Errorf("run timed out"))
	case scheduler.OutcomeStoppedExternally:
		return newCliError(exitRunInterrupted, fmt.Errorf("run stopped externally"))
	default:
		return nil
	}
}
