package devplan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskswarm/swarmctl/pkg/store"
)

type fakePredictor struct {
	patterns []string
}

func (f *fakePredictor) Predict(ctx context.Context, workDir string, task Task) []string {
	return f.patterns
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "swarm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeDevplan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "PLAN.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestAnalyzeInsertsTasks(t *testing.T) {
	s := newTestStore(t)
	runID, err := s.StartRun("devplan", "PLAN.md", "hash-a", "", 2)
	require.NoError(t, err)

	plan := writeDevplan(t, "- [ ] write the README\n- [ ] add CI config\n")

	a := &Analyzer{Store: s, Predictor: &fakePredictor{patterns: []string{"README.md"}}, WorkDir: t.TempDir()}
	summary, err := a.Analyze(context.Background(), runID, plan)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Added)
	assert.Equal(t, 0, summary.Skipped)

	tasks, err := s.ListTasks(runID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, []string{"README.md"}, tasks[0].EstimatedFiles)
}

func TestAnalyzeSkipsAlreadyCompletedTask(t *testing.T) {
	s := newTestStore(t)
	runID, err := s.StartRun("devplan", "PLAN.md", "hash-b", "", 1)
	require.NoError(t, err)

	_, skipped, err := s.AddTask(runID, "write the README", nil, 1, 0)
	require.NoError(t, err)
	require.False(t, skipped)

	workerID, err := s.RegisterWorker(runID, 1, os.Getpid(), "swarm/"+runID+"/worker-1", t.TempDir())
	require.NoError(t, err)
	claimed, err := s.ClaimTask(runID, workerID)
	require.NoError(t, err)
	require.NoError(t, s.CompleteTask(runID, claimed.ID, nil, workerID))

	plan := writeDevplan(t, "- [ ] write the README\n")
	a := &Analyzer{Store: s, Predictor: &fakePredictor{}, WorkDir: t.TempDir()}
	summary, err := a.Analyze(context.Background(), runID, plan)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Added)
	assert.Equal(t, 1, summary.Skipped)
}
