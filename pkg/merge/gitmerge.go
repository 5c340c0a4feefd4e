package merge

import (
	"github.com/taskswarm/swarmctl/pkg/gitutil"
)

// WorkerMergeResult reports how one worker's branch was reconciled into
// the destination.
type WorkerMergeResult struct {
	WorkerNum    int
	Branch       string
	ChangedFiles []string
	Conflicted   bool
	CopiedFiles  []string
	SkippedFiles []string
}

// mergeWorkerBranch reconciles one worker's branch into dest's current
// branch: merge-base + diff enumeration, then `git merge --no-edit`,
// falling back to file-copy reconciliation on conflict (the two
// steps 3a-3c).
func mergeWorkerBranch(dest *gitutil.Repo, workerDir, baseBranch, branch string, workerNum int) (WorkerMergeResult, error) {
	res := WorkerMergeResult{WorkerNum: workerNum, Branch: branch}

	base, err := dest.MergeBase(baseBranch, branch)
	if err != nil {
		return res, err
	}
	head, err := dest.HeadCommit(branch)
	if err != nil {
		return res, err
	}

	changed, err := dest.ChangedFiles(base, head)
	if err != nil {
		return res, err
	}
	res.ChangedFiles = changed

	if err := dest.Merge(branch); err == nil {
		return res, nil
	}

	res.Conflicted = true
	res.CopiedFiles, res.SkippedFiles = copyChangedFiles(workerDir, dest.Dir, changed)
	return res, nil
}
