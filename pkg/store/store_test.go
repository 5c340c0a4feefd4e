package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "swarm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustRun(t *testing.T, s *Store) string {
	t.Helper()
	runID, err := s.StartRun("devplan", "PLAN.md", "hash-1", "", 2)
	require.NoError(t, err)
	return runID
}

func TestClaimTaskAtMostOnce(t *testing.T) {
	s := newTestStore(t)
	runID := mustRun(t, s)

	const workers = 8
	_, skipped, err := s.AddTask(runID, "only task", nil, 1, 0)
	require.NoError(t, err)
	require.False(t, skipped)

	workerIDs := make([]string, workers)
	for i := range workerIDs {
		id, err := s.RegisterWorker(runID, i+1, 1, fmt.Sprintf("swarm/r/worker-%d", i+1), "/tmp/w")
		require.NoError(t, err)
		workerIDs[i] = id
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			task, err := s.ClaimTask(runID, workerIDs[n])
			if err != nil {
				return
			}
			mu.Lock()
			claimed = append(claimed, task.ID)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, claimed, 1, "exactly one worker should have claimed the only task")
}

func TestLockMutualExclusion(t *testing.T) {
	s := newTestStore(t)
	runID := mustRun(t, s)

	w1, err := s.RegisterWorker(runID, 1, 100, "swarm/r/worker-1", "/tmp/w1")
	require.NoError(t, err)
	w2, err := s.RegisterWorker(runID, 2, 200, "swarm/r/worker-2", "/tmp/w2")
	require.NoError(t, err)

	conflicts1, err := s.AcquireLocks(runID, w1, 1, []string{"src/a.py"})
	require.NoError(t, err)
	assert.Empty(t, conflicts1)

	conflicts2, err := s.AcquireLocks(runID, w2, 2, []string{"src/a.py"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.py"}, conflicts2)

	holder, err := s.CheckConflicts(runID, "src/a.py")
	require.NoError(t, err)
	assert.Equal(t, w1, holder)
}

func TestIdempotentCompletion(t *testing.T) {
	s := newTestStore(t)
	runID := mustRun(t, s)

	id, skipped, err := s.AddTask(runID, "write the readme", nil, 1, 0)
	require.NoError(t, err)
	require.False(t, skipped)

	workerID, err := s.RegisterWorker(runID, 1, 1, "swarm/r/worker-1", "/tmp/w1")
	require.NoError(t, err)
	claimed, err := s.ClaimTask(runID, workerID)
	require.NoError(t, err)
	require.Equal(t, id, claimed.ID)

	require.NoError(t, s.CompleteTask(runID, id, []string{"README.md"}, workerID))

	done, err := s.IsTaskCompleted(TaskHash("write the readme"))
	require.NoError(t, err)
	assert.True(t, done)

	// Re-adding the same text under the same source must skip, never
	// resurrecting the completed hash.
	_, skipped, err = s.AddTask(runID, "write the readme", nil, 2, 0)
	require.NoError(t, err)
	assert.True(t, skipped)
}

func TestResumePreservesStartedAt(t *testing.T) {
	s := newTestStore(t)
	runID := mustRun(t, s)

	before, err := s.GetRun(runID)
	require.NoError(t, err)

	require.NoError(t, s.ResumeRun(runID))

	after, err := s.GetRun(runID)
	require.NoError(t, err)
	assert.True(t, before.StartedAt.Equal(after.StartedAt))
}

func TestResumePromotesCompletedInProgressTask(t *testing.T) {
	s := newTestStore(t)
	runID := mustRun(t, s)

	id, _, err := s.AddTask(runID, "do the thing", nil, 1, 0)
	require.NoError(t, err)

	workerID, err := s.RegisterWorker(runID, 1, 1, "swarm/r/worker-1", "/tmp/w1")
	require.NoError(t, err)
	_, err = s.ClaimTask(runID, workerID)
	require.NoError(t, err)

	// Simulate the work having actually finished under a prior attempt:
	// the hash is already in CompletedTask even though this task row is
	// still in_progress (coordinator crashed between agent commit and
	// complete_task).
	_, err = s.db.Exec(
		`INSERT INTO completed_tasks (task_hash, task_text, source_hash, completed_at, run_id) VALUES (?, ?, ?, ?, ?)`,
		TaskHash("do the thing"), "do the thing", "hash-1", time.Now().UTC(), runID,
	)
	require.NoError(t, err)

	require.NoError(t, s.ResumeRun(runID))

	task, err := s.GetTask(runID, id)
	require.NoError(t, err)
	assert.Equal(t, "completed", string(task.Status))
}

func TestResumeRequeuesUnfinishedInProgressTask(t *testing.T) {
	s := newTestStore(t)
	runID := mustRun(t, s)

	id, _, err := s.AddTask(runID, "do another thing", nil, 1, 0)
	require.NoError(t, err)

	workerID, err := s.RegisterWorker(runID, 1, 1, "swarm/r/worker-1", "/tmp/w1")
	require.NoError(t, err)
	_, err = s.ClaimTask(runID, workerID)
	require.NoError(t, err)

	require.NoError(t, s.ResumeRun(runID))

	task, err := s.GetTask(runID, id)
	require.NoError(t, err)
	assert.Equal(t, "pending", string(task.Status))
	assert.Equal(t, 1, task.StallCount)
}

func TestCompletionMonotonicity(t *testing.T) {
	s := newTestStore(t)
	runID := mustRun(t, s)

	id1, _, err := s.AddTask(runID, "task one", nil, 1, 0)
	require.NoError(t, err)
	id2, _, err := s.AddTask(runID, "task two", nil, 2, 0)
	require.NoError(t, err)

	runBefore, err := s.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, 2, runBefore.TotalTasks)

	workerID, err := s.RegisterWorker(runID, 1, 1, "swarm/r/worker-1", "/tmp/w1")
	require.NoError(t, err)

	for _, id := range []int64{id1, id2} {
		claimed, err := s.ClaimTask(runID, workerID)
		require.NoError(t, err)
		require.Equal(t, id, claimed.ID)
		require.NoError(t, s.CompleteTask(runID, id, nil, workerID))

		run, err := s.GetRun(runID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, run.CompletedTasks, runBefore.CompletedTasks)
		runBefore = run
	}

	final, err := s.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, 2, final.CompletedTasks)
	assert.Equal(t, "completed", string(final.Status))
}

func TestWorkerDeathRequeuesTask(t *testing.T) {
	s := newTestStore(t)
	runID := mustRun(t, s)

	id, _, err := s.AddTask(runID, "dies with worker", []string{"a.py"}, 1, 0)
	require.NoError(t, err)

	workerID, err := s.RegisterWorker(runID, 1, 1, "swarm/r/worker-1", "/tmp/w1")
	require.NoError(t, err)
	_, err = s.ClaimTask(runID, workerID)
	require.NoError(t, err)
	_, err = s.AcquireLocks(runID, workerID, id, []string{"a.py"})
	require.NoError(t, err)

	// Force the heartbeat stale so the cleanup sweep reaps it.
	_, err = s.db.Exec(`UPDATE workers SET last_heartbeat = ? WHERE id = ?`, time.Now().Add(-time.Hour), workerID)
	require.NoError(t, err)

	reaped, err := s.CleanupStaleWorkers(runID, time.Minute)
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
