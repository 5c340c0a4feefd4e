package gitutil

import (
	"fmt"
	"strings"
)

// HasTaskCommit reports whether branch already has a commit whose
// subject starts with "Task <id>: ", the idempotency gate's
// own-worktree fallback check for work a prior, crashed attempt
// already finished but never reported back to the coordination store.
func (r *Repo) HasTaskCommit(branch string, taskID int64) (bool, error) {
	subjects, err := r.Log(branch)
	if err != nil {
		return false, err
	}
	prefix := fmt.Sprintf("Task %d: ", taskID)
	for _, s := range subjects {
		if strings.HasPrefix(s, prefix) {
			return true, nil
		}
	}
	return false, nil
}
