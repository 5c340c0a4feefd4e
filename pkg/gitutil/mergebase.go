package gitutil

import "strings"

// MergeBase computes the merge base of two refs. If the histories are
// unrelated (no common ancestor — a worktree branch created by `git
// worktree add -b` with no shared root against a freshly-initialized
// destination repo), it falls back to the initial commit of ref2.
func (r *Repo) MergeBase(ref1, ref2 string) (string, error) {
	base, err := r.run("merge-base", ref1, ref2)
	if err == nil {
		return base, nil
	}
	if !IsUnrelatedHistory(err) {
		return "", err
	}
	return r.initialCommit(ref2)
}

func (r *Repo) initialCommit(ref string) (string, error) {
	out, err := r.run("rev-list", "--max-parents=0", ref)
	if err != nil {
		return "", err
	}
	lines := strings.Split(out, "\n")
	return lines[0], nil
}

// ChangedFiles returns files that differ between base and head.
func (r *Repo) ChangedFiles(base, head string) ([]string, error) {
	out, err := r.run("diff", "--name-only", base, head)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// Merge attempts a no-edit merge of branch into the current branch.
// On conflict, it aborts the merge so the caller can fall back to
// file-copy reconciliation.
func (r *Repo) Merge(branch string) error {
	_, err := r.run("merge", "--no-edit", branch)
	if err != nil {
		_, _ = r.run("merge", "--abort")
		return err
	}
	return nil
}

// ShowFile reads a file's exact blob content as of ref.
func (r *Repo) ShowFile(ref, path string) ([]byte, error) {
	return r.runRaw("show", ref+":"+path)
}
