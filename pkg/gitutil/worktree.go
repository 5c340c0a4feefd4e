package gitutil

import "fmt"

// AddWorktree creates a new worktree at path on a new branch named
// branch, based on baseBranch.
func (r *Repo) AddWorktree(path, branch, baseBranch string) error {
	_, err := r.run("worktree", "add", "-b", branch, path, baseBranch)
	if err != nil {
		return fmt.Errorf("gitutil: add worktree %s: %w", path, err)
	}
	return nil
}

// RemoveWorktree removes a worktree, forcing removal even if it has
// uncommitted changes (the worker's work has already been merged or
// abandoned by the time this is called).
func (r *Repo) RemoveWorktree(path string) error {
	_, err := r.run("worktree", "remove", "--force", path)
	return err
}

// PruneWorktrees removes administrative data for worktrees whose
// directories are gone.
func (r *Repo) PruneWorktrees() error {
	_, err := r.run("worktree", "prune")
	return err
}
