package coordinator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskswarm/swarmctl/pkg/config"
	"github.com/taskswarm/swarmctl/pkg/devplan"
	"github.com/taskswarm/swarmctl/pkg/gitutil"
	"github.com/taskswarm/swarmctl/pkg/scheduler"
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

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
}

func newWorkerRepo(t *testing.T) (*gitutil.Repo, string) {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "swarm@test.local")
	runGit(t, dir, "config", "user.name", "swarm-test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# repo\n"), 0644))
	runGit(t, dir, "add", "README.md")
	runGit(t, dir, "commit", "-m", "initial")
	return gitutil.NewRepo(dir), dir
}

func TestHashDevplanIsStableAndContentSensitive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "PLAN.md")
	require.NoError(t, os.WriteFile(path, []byte("- [ ] task one\n"), 0644))

	h1, err := HashDevplan(path)
	require.NoError(t, err)
	h2, err := HashDevplan(path)
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	require.NoError(t, os.WriteFile(path, []byte("- [ ] task two\n"), 0644))
	h3, err := HashDevplan(path)
	require.NoError(t, err)
	require.NotEqual(t, h1, h3)
}

func TestStartRejectsDuplicateActiveRun(t *testing.T) {
	s := newTestStore(t)
	cfg := &config.Config{MaxWorkers: 1, TaskTimeout: time.Second, RunTimeout: time.Minute}
	c := New(cfg, s)
	defer c.Close()

	devplanPath := filepath.Join(t.TempDir(), "PLAN.md")
	require.NoError(t, os.WriteFile(devplanPath, []byte("- [ ] task one\n"), 0644))
	sourceHash, err := HashDevplan(devplanPath)
	require.NoError(t, err)

	_, err = s.StartRun("devplan", devplanPath, sourceHash, "", 1)
	require.NoError(t, err)

	_, err = c.Start(context.Background(), devplanPath, t.TempDir(), "", 1)
	require.Error(t, err)
}

// TestRunSchedulerMergesOnCompletion exercises the merge hand-off
// without going through real worker processes: a run with its tasks
// already completed should finish on the scheduler's first tick and
// produce a merge summary.
func TestRunSchedulerMergesOnCompletion(t *testing.T) {
	repo, workerDir := newWorkerRepo(t)

	s := newTestStore(t)
	cfg := &config.Config{} // no ProjectName/ProjectsBase: merge falls back to the worker's worktree
	runID, err := s.StartRun("devplan", "PLAN.md", "hash-coord-1", "", 1)
	require.NoError(t, err)

	taskID, _, err := s.AddTask(runID, "add a file", nil, 1, 0)
	require.NoError(t, err)

	branch := gitutil.WorkerBranchName(runID, 0)
	runGit(t, workerDir, "checkout", "-b", branch)
	require.NoError(t, os.WriteFile(filepath.Join(workerDir, "a.txt"), []byte("a"), 0644))
	require.NoError(t, repo.StageAll())
	require.NoError(t, repo.Commit("Task 1: add a.txt"))

	workerID, err := s.RegisterWorker(runID, 0, os.Getpid(), branch, workerDir)
	require.NoError(t, err)
	claimed, err := s.ClaimTask(runID, workerID)
	require.NoError(t, err)
	require.Equal(t, taskID, claimed.ID)
	require.NoError(t, s.CompleteTask(runID, taskID, []string{"a.txt"}, workerID))

	c := New(cfg, s)
	defer c.Close()
	c.SchedulerPollInterval = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := c.runScheduler(ctx, runID, devplan.Summary{Added: 1})
	require.NoError(t, err)
	require.Equal(t, scheduler.OutcomeDone, result.Outcome)
	require.True(t, result.Merged)
	require.FileExists(t, filepath.Join(workerDir, "SWARM_SUMMARY.md"))
}

// TestEmergencyStopSignalsAndRequeues registers a worker backed by a
// real (harmless) child process, then verifies EmergencyStop signals
// it, requeues its task, and marks the run interrupted.
func TestEmergencyStopSignalsAndRequeues(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	s := newTestStore(t)
	cfg := &config.Config{}
	runID, err := s.StartRun("devplan", "PLAN.md", "hash-coord-2", "", 1)
	require.NoError(t, err)

	taskID, _, err := s.AddTask(runID, "do something", nil, 1, 0)
	require.NoError(t, err)

	workerID, err := s.RegisterWorker(runID, 0, cmd.Process.Pid, "swarm/"+runID+"/worker-0", t.TempDir())
	require.NoError(t, err)
	claimed, err := s.ClaimTask(runID, workerID)
	require.NoError(t, err)
	require.Equal(t, taskID, claimed.ID)

	c := New(cfg, s)
	defer c.Close()

	stopped, err := c.EmergencyStop()
	require.NoError(t, err)
	require.Equal(t, 1, stopped)

	run, err := s.GetRun(runID)
	require.NoError(t, err)
	require.Equal(t, types.RunStatusInterrupted, run.Status)

	task, err := s.GetTask(runID, taskID)
	require.NoError(t, err)
	require.Equal(t, types.TaskStatusPending, task.Status)
	require.Equal(t, 1, task.StallCount)

	worker, err := s.GetWorker(workerID)
	require.NoError(t, err)
	require.Equal(t, types.WorkerStatusStopped, worker.Status)
}
