package worker

import (
	"github.com/taskswarm/swarmctl/pkg/gitutil"
	"github.com/taskswarm/swarmctl/pkg/store"
)

// alreadyDone implements the idempotency gate:
// a claimed task may already be finished, either because a prior run
// recorded its hash in CompletedTask, or because a crashed prior
// attempt in this very worktree committed the work but never reported
// back to the coordination store. Either signal is sufficient.
func alreadyDone(s *store.Store, repo *gitutil.Repo, taskHash string, taskID int64) (bool, error) {
	done, err := s.IsTaskCompleted(taskHash)
	if err != nil {
		return false, err
	}
	if done {
		return true, nil
	}

	branch, err := repo.CurrentBranch()
	if err != nil {
		return false, err
	}
	return repo.HasTaskCommit(branch, taskID)
}
