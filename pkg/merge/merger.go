// Package merge implements the artifact extractor: after the scheduler
// exits, it folds every worker's branch into a single destination
// project directory, falling back to file-copy reconciliation on
// conflict, then verifies completed tasks actually landed and writes a
// human-readable SWARM_SUMMARY.md.
package merge

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/taskswarm/swarmctl/pkg/config"
	"github.com/taskswarm/swarmctl/pkg/gitutil"
	"github.com/taskswarm/swarmctl/pkg/log"
	"github.com/taskswarm/swarmctl/pkg/metrics"
	"github.com/taskswarm/swarmctl/pkg/store"
	"github.com/taskswarm/swarmctl/pkg/types"
)

// Merger runs the post-schedule merge pass for one run.
type Merger struct {
	Store  *store.Store
	Config *config.Config
	logger zerolog.Logger
}

// New builds a Merger.
func New(s *store.Store, cfg *config.Config) *Merger {
	return &Merger{Store: s, Config: cfg, logger: log.WithComponent("merge")}
}

// Run executes the merge algorithm for runID and returns the summary it
// wrote to SWARM_SUMMARY.md.
func (m *Merger) Run(runID string) (Summary, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.MergeDuration)

	run, err := m.Store.GetRun(runID)
	if err != nil {
		return Summary{}, fmt.Errorf("merge: get run: %w", err)
	}

	workers, err := m.Store.ListWorkers(runID)
	if err != nil {
		return Summary{}, fmt.Errorf("merge: list workers: %w", err)
	}
	if len(workers) == 0 {
		return Summary{}, fmt.Errorf("merge: run %s has no workers to merge", runID)
	}

	destDir, baseBranch, primary, err := m.resolveDestination(runID, workers)
	if err != nil {
		return Summary{}, err
	}

	dest, err := gitutil.EnsureRepo(destDir)
	if err != nil {
		return Summary{}, err
	}

	var results []WorkerMergeResult
	for _, w := range workers {
		if w.WorkerNum == primary.WorkerNum {
			continue
		}
		branch := gitutil.WorkerBranchName(runID, w.WorkerNum)
		if !dest.BranchExists(branch) {
			m.logger.Warn().Int("worker_num", w.WorkerNum).Msg("worker branch not found, skipping merge")
			continue
		}
		res, err := mergeWorkerBranch(dest, w.WorkDir, baseBranch, branch, w.WorkerNum)
		if err != nil {
			m.logger.Error().Err(err).Int("worker_num", w.WorkerNum).Msg("merge failed")
			continue
		}
		if res.Conflicted {
			metrics.MergeConflictsTotal.Inc()
		}
		results = append(results, res)
	}

	if changed, err := dest.HasChanges(); err == nil && changed {
		if err := dest.StageAll(); err != nil {
			return Summary{}, fmt.Errorf("merge: stage: %w", err)
		}
		if err := dest.Commit(fmt.Sprintf("Merge swarm run %s", runID)); err != nil {
			return Summary{}, fmt.Errorf("merge: commit: %w", err)
		}
	}

	missing, err := m.verify(runID, destDir)
	if err != nil {
		m.logger.Warn().Err(err).Msg("verification pass failed to complete")
	}

	summary := Summary{
		RunID:          runID,
		SourcePath:     run.SourcePath,
		StartedAt:      run.StartedAt,
		CompletedAt:    run.CompletedAt,
		TotalTasks:     run.TotalTasks,
		CompletedTasks: run.CompletedTasks,
		FailedTasks:    run.FailedTasks,
		Workers:        results,
		MissingFiles:   missing,
	}

	rendered, err := Render(summary)
	if err != nil {
		return summary, fmt.Errorf("merge: render summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(destDir, "SWARM_SUMMARY.md"), []byte(rendered), 0644); err != nil {
		return summary, fmt.Errorf("merge: write summary: %w", err)
	}

	return summary, nil
}

// resolveDestination determines the project directory the merge writes
// to: the devplan's configured project location,
// falling back to the first worker's own worktree. In the fallback
// case that worktree's own branch becomes the merge target directly —
// every other worker's branch is merged onto it in place, rather than
// attempting to discover a separate base branch from inside a worktree
// whose checked-out HEAD is already a worker branch.
func (m *Merger) resolveDestination(runID string, workers []*types.Worker) (destDir, baseBranch string, primary *types.Worker, err error) {
	primary = workers[0]
	for _, w := range workers {
		if w.WorkerNum < primary.WorkerNum {
			primary = w
		}
	}

	if m.Config.ProjectName != "" && m.Config.ProjectsBase != "" {
		destDir = filepath.Join(m.Config.ProjectsBase, m.Config.ProjectName)
		if m.Config.BaseBranch != "" {
			baseBranch = m.Config.BaseBranch
		} else {
			dest, derr := gitutil.EnsureRepo(destDir)
			if derr != nil {
				return "", "", nil, derr
			}
			baseBranch, err = dest.DefaultBaseBranch()
			if err != nil {
				return "", "", nil, err
			}
		}
		return destDir, baseBranch, primary, nil
	}

	destDir = primary.WorkDir
	baseBranch = gitutil.WorkerBranchName(runID, primary.WorkerNum)
	return destDir, baseBranch, primary, nil
}

// verify checks that every completed task's actual_files landed in the
// merged destination. Missing files are reported
// as warnings, never as a merge failure.
func (m *Merger) verify(runID, destDir string) ([]string, error) {
	tasks, err := m.Store.ListTasks(runID)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, t := range tasks {
		if t.Status != types.TaskStatusCompleted {
			continue
		}
		for _, f := range t.ActualFiles {
			if IsDenied(f) {
				continue
			}
			if _, err := os.Stat(filepath.Join(destDir, f)); err != nil {
				missing = append(missing, f)
			}
		}
	}
	return missing, nil
}
