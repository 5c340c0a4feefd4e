package worker

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

// SpawnOptions describes one worker process to launch.
type SpawnOptions struct {
	SwarmctlBin string
	RunID       string
	WorkerNum   int
	WorkDir     string
	LogPath     string
}

// Spawn launches a detached `swarmctl worker run` process re-invoking
// the coordinator's own binary. The child runs in a new session with
// no controlling terminal: it can't receive signals
// sent to the coordinator's process group, and its stdio is redirected
// to a log file rather than inherited.
func Spawn(opts SpawnOptions) (*os.Process, error) {
	logFile, err := os.OpenFile(opts.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("worker: open log file %s: %w", opts.LogPath, err)
	}
	defer logFile.Close()

	cmd := exec.Command(opts.SwarmctlBin, "worker", "run",
		"--run-id", opts.RunID,
		"--worker-num", strconv.Itoa(opts.WorkerNum),
		"--work-dir", opts.WorkDir,
	)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("worker: spawn: %w", err)
	}

	return cmd.Process, nil
}
