package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskswarm/swarmctl/pkg/gitutil"
	"github.com/taskswarm/swarmctl/pkg/worker"
)

// workerCmd is not meant for interactive use: the coordinator spawns it
// itself, pointed at a worktree it has already created.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Internal worker process commands",
	Hidden: true,
}

var workerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run as a single swarm worker bound to the current worktree",
	RunE:  runWorkerRun,
}

func init() {
	workerRunCmd.Flags().String("run-id", "", "Run this worker belongs to (required)")
	workerRunCmd.Flags().Int("worker-num", -1, "This worker's slot number (required)")
	workerRunCmd.Flags().String("work-dir", "", "Worktree this worker operates in (default: current directory)")
	_ = workerRunCmd.MarkFlagRequired("run-id")
	_ = workerRunCmd.MarkFlagRequired("worker-num")
	workerCmd.AddCommand(workerRunCmd)
}

func runWorkerRun(cmd *cobra.Command, args []string) error {
	runID, _ := cmd.Flags().GetString("run-id")
	workerNum, _ := cmd.Flags().GetInt("worker-num")
	if workerNum < 0 {
		return newCliError(exitUsage, fmt.Errorf("--worker-num is required"))
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return newCliError(exitUsage, err)
	}

	workDir, _ := cmd.Flags().GetString("work-dir")
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			return newCliError(exitUnrecoverable, err)
		}
	}

	s, err := openStore(cfg)
	if err != nil {
		return newCliError(exitUnrecoverable, err)
	}
	defer s.Close()

	branch := gitutil.WorkerBranchName(runID, workerNum)
	w, err := worker.Register(s, runID, workerNum, os.Getpid(), branch, workDir, cfg.AgentBin, cfg.TaskTimeout)
	if err != nil {
		return newCliError(exitUnrecoverable, err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	w.Run(ctx)
	return nil
}
