package coordinator

import (
	"fmt"
	"syscall"

	"github.com/taskswarm/swarmctl/pkg/types"
)

// EmergencyStop signals every non-stopped worker across every running
// run with SIGTERM, then forces each one to stopped in the store
// (requeuing its current task, releasing its locks) and marks the run
// interrupted. It returns how many workers it stopped.
func (c *Coordinator) EmergencyStop() (int, error) {
	runs, err := c.Store.ListRuns()
	if err != nil {
		return 0, fmt.Errorf("coordinator: list runs: %w", err)
	}

	var stopped int
	for _, run := range runs {
		if run.Status != types.RunStatusRunning {
			continue
		}

		workers, err := c.Store.ListWorkers(run.ID)
		if err != nil {
			return stopped, fmt.Errorf("coordinator: list workers for %s: %w", run.ID, err)
		}

		var anyStopped bool
		for _, w := range workers {
			if w.Status == types.WorkerStatusStopped {
				continue
			}

			if err := syscall.Kill(w.PID, syscall.SIGTERM); err != nil {
				c.logger.Warn().Err(err).Int("pid", w.PID).Msg("signal worker failed, stopping record anyway")
			}

			if err := c.Store.StopWorker(run.ID, w.ID); err != nil {
				return stopped, fmt.Errorf("coordinator: stop worker %s: %w", w.ID, err)
			}
			stopped++
			anyStopped = true
		}

		if anyStopped {
			if err := c.Store.SetRunInterrupted(run.ID); err != nil {
				return stopped, fmt.Errorf("coordinator: mark run %s interrupted: %w", run.ID, err)
			}
		}
	}

	return stopped, nil
}
