package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskswarm/swarmctl/pkg/coordinator"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume a run that was interrupted or timed out",
	Long: `resume re-applies crash recovery to a run's in-progress tasks and
workers, respawns a worker process for every still-present worktree,
and re-enters the scheduler loop.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("Resuming run %s\n", runID)
	result, err := c.Resume(ctx, runID)
	if err != nil {
		return newCliError(exitUnrecoverable, err)
	}

	printResult(result)
	return exitForOutcome(result.Outcome)
}
