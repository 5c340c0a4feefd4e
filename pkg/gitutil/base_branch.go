package gitutil

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// DefaultBaseBranch resolves the branch new worktrees and merges are
// based on. SWARM_BASE_BRANCH overrides discovery entirely; otherwise
// the repo's HEAD symbolic ref is used, falling back to "main" then
// "master" if HEAD is not a symbolic ref (a detached HEAD).
func (r *Repo) DefaultBaseBranch() (string, error) {
	if override := os.Getenv("SWARM_BASE_BRANCH"); override != "" {
		return override, nil
	}

	out, err := r.run("symbolic-ref", "--short", "HEAD")
	if err == nil && out != "" {
		return out, nil
	}

	for _, candidate := range []string{"main", "master"} {
		if r.BranchExists(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("gitutil: could not determine default base branch for %s", r.Dir)
}

// WorkerBranchName is the branch a worker's worktree is created on.
func WorkerBranchName(runID string, workerNum int) string {
	return fmt.Sprintf("swarm/%s/worker-%d", runID, workerNum)
}

// IsUnrelatedHistory reports whether a merge-base error indicates the
// two branches share no common ancestor. git merge-base signals that
// case by exiting with status 1 and printing nothing.
func IsUnrelatedHistory(err error) bool {
	if err == nil {
		return false
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true
	}
	return strings.Contains(err.Error(), "fatal: no merge base")
}
