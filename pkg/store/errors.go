package store

import "errors"

// Sentinel errors returned by coordination store operations. Callers
// use errors.Is to distinguish recoverable conditions (lock conflict,
// lost claim race) from the rest.
var (
	// ErrNoTask is returned by ClaimTask when no pending task exists.
	ErrNoTask = errors.New("store: no pending task")

	// ErrClaimLost indicates a concurrent claimant won the race and the
	// caller should retry with backoff.
	ErrClaimLost = errors.New("store: lost claim race")

	// ErrLockConflict indicates a requested pattern is already held by
	// another worker.
	ErrLockConflict = errors.New("store: file lock conflict")

	// ErrTaskNotInProgress is returned when complete_task/fail_task is
	// called against a task that is not in_progress under the caller's
	// worker_id.
	ErrTaskNotInProgress = errors.New("store: task not in_progress for this worker")

	// ErrRunNotFound indicates the run_id does not exist.
	ErrRunNotFound = errors.New("store: run not found")

	// ErrTaskNotFound indicates the (run_id, id) pair does not exist.
	ErrTaskNotFound = errors.New("store: task not found")
)
