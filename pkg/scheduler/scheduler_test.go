package scheduler

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskswarm/swarmctl/pkg/store"
	"github.com/taskswarm/swarmctl/pkg/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "swarm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func deadPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	return cmd.Process.Pid
}

func TestSchedulerFinishesWhenNoTasksPending(t *testing.T) {
	s := newTestStore(t)
	runID, err := s.StartRun("devplan", "PLAN.md", "hash-a", "", 1)
	require.NoError(t, err)
	_, err = s.RegisterWorker(runID, 1, os.Getpid(), "swarm/r/worker-1", "/tmp/w1")
	require.NoError(t, err)

	sched := New(s, runID, time.Hour)
	sched.PollInterval = 20 * time.Millisecond
	sched.Start()

	select {
	case outcome := <-sched.doneCh:
		assert.Equal(t, OutcomeDone, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not finish in time")
	}
}

func TestSchedulerReapsDeadWorkerAndRequeuesTask(t *testing.T) {
	s := newTestStore(t)
	runID, err := s.StartRun("devplan", "PLAN.md", "hash-b", "", 1)
	require.NoError(t, err)

	taskID, _, err := s.AddTask(runID, "do the thing", []string{"a.py"}, 1, 0)
	require.NoError(t, err)

	workerID, err := s.RegisterWorker(runID, 1, deadPID(t), "swarm/r/worker-1", "/tmp/w1")
	require.NoError(t, err)
	_, err = s.ClaimTask(runID, workerID)
	require.NoError(t, err)

	sched := New(s, runID, time.Hour)
	sched.PollInterval = 20 * time.Millisecond
	sched.Start()

	// This run has no surviving workers, so the sweep should conclude
	// "resume required" after reaping the dead one.
	select {
	case outcome := <-sched.doneCh:
		assert.Equal(t, OutcomeResumeRequired, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not finish in time")
	}

	task, err := s.GetTask(runID, taskID)
	require.NoError(t, err)
	assert.Equal(t, "pending", string(task.Status))

	run, err := s.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusInterrupted, run.Status)
}

func TestSchedulerRunTimeout(t *testing.T) {
	s := newTestStore(t)
	runID, err := s.StartRun("devplan", "PLAN.md", "hash-c", "", 1)
	require.NoError(t, err)
	_, _, err = s.AddTask(runID, "never finishes", nil, 1, 0)
	require.NoError(t, err)
	_, err = s.RegisterWorker(runID, 1, os.Getpid(), "swarm/r/worker-1", "/tmp/w1")
	require.NoError(t, err)

	sched := New(s, runID, 30*time.Millisecond)
	sched.PollInterval = 20 * time.Millisecond
	sched.Start()

	select {
	case outcome := <-sched.doneCh:
		assert.Equal(t, OutcomeRunTimeout, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not finish in time")
	}
}

func TestSchedulerStop(t *testing.T) {
	s := newTestStore(t)
	runID, err := s.StartRun("devplan", "PLAN.md", "hash-d", "", 1)
	require.NoError(t, err)
	_, _, err = s.AddTask(runID, "pending forever", nil, 1, 0)
	require.NoError(t, err)
	_, err = s.RegisterWorker(runID, 1, deadPID(t), "swarm/r/worker-1", "/tmp/w1")
	require.NoError(t, err)

	sched := New(s, runID, time.Hour)
	sched.PollInterval = time.Hour
	sched.Start()
	sched.Stop()

	select {
	case outcome := <-sched.doneCh:
		assert.Equal(t, OutcomeStoppedExternally, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}
