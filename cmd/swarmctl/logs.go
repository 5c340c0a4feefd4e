package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs <run-id> <worker-num>",
	Short: "Print a worker's log file",
	Args:  cobra.ExactArgs(2),
	RunE:  runLogs,
}

func runLogs(cmd *cobra.Command, args []string) error {
	runID := args[0]
	workerNum, err := strconv.Atoi(args[1])
	if err != nil {
		return newCliError(exitUsage, fmt.Errorf("worker number must be an integer: %w", err))
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return newCliError(exitUsage, err)
	}

	logPath := filepath.Join(cfg.WorkerDir(runID, workerNum), "logs", "worker.log")
	f, err := os.Open(logPath)
	if err != nil {
		return newCliError(exitUnrecoverable, fmt.Errorf("open log %s: %w", logPath, err))
	}
	defer f.Close()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		fmt.Fprintln(w, scanner.Text())
	}
	return scanner.Err()
}
