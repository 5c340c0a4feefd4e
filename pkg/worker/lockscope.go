package worker

import "github.com/taskswarm/swarmctl/pkg/store"

// AcquireScoped acquires locks on patterns for (runID, workerID, taskID)
// and hands back a release func that is safe to call unconditionally,
// even if acquisition only partially succeeded or failed outright. This
// mirrors the acquire/release pairing idiom of a dedicated lock-manager
// package: acquisition and release are separate, explicit calls, and
// the caller is expected to defer the release immediately upon a
// non-error return so every exit path is covered.
//
// A non-empty conflicts return means some patterns were already held
// elsewhere; a partial acquisition is accepted by design (a requeue
// acquisition), but the caller treats any conflict as a reason to
// requeue rather than proceed, so the release func un-acquires
// whatever this call did manage to claim.
func AcquireScoped(s *store.Store, runID, workerID string, taskID int64, patterns []string) (conflicts []string, release func(), err error) {
	release = func() {
		_ = s.ReleaseLocks(workerID)
	}

	if len(patterns) == 0 {
		return nil, release, nil
	}

	conflicts, err = s.AcquireLocks(runID, workerID, taskID, patterns)
	if err != nil {
		return nil, release, err
	}
	return conflicts, release, nil
}
