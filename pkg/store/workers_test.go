package store

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deadPID returns a pid guaranteed not to be alive: it spawns a
// short-lived child, waits for it to exit, and hands back its former
// pid.
func deadPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	return cmd.Process.Pid
}

func TestReapDeadWorkersReapsExitedPID(t *testing.T) {
	s := newTestStore(t)
	runID := mustRun(t, s)

	id, _, err := s.AddTask(runID, "dies with worker", []string{"a.py"}, 1, 0)
	require.NoError(t, err)

	workerID, err := s.RegisterWorker(runID, 1, deadPID(t), "swarm/r/worker-1", "/tmp/w1")
	require.NoError(t, err)
	_, err = s.ClaimTask(runID, workerID)
	require.NoError(t, err)
	_, err = s.AcquireLocks(runID, workerID, id, []string{"a.py"})
	require.NoError(t, err)

	reaped, err := s.ReapDeadWorkers(runID)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	task, err := s.GetTask(runID, id)
	require.NoError(t, err)
	assert.Equal(t, "pending", string(task.Status))
	assert.Equal(t, 1, task.StallCount)

	holder, err := s.CheckConflicts(runID, "a.py")
	require.NoError(t, err)
	assert.Empty(t, holder)

	worker, err := s.GetWorker(workerID)
	require.NoError(t, err)
	assert.Equal(t, "stopped", string(worker.Status))
}

func TestReapDeadWorkersLeavesLiveWorkerAlone(t *testing.T) {
	s := newTestStore(t)
	runID := mustRun(t, s)

	workerID, err := s.RegisterWorker(runID, 1, os.Getpid(), "swarm/r/worker-1", "/tmp/w1")
	require.NoError(t, err)

	reaped, err := s.ReapDeadWorkers(runID)
	require.NoError(t, err)
	assert.Equal(t, 0, reaped)

	worker, err := s.GetWorker(workerID)
	require.NoError(t, err)
	assert.Equal(t, "idle", string(worker.Status))
}
