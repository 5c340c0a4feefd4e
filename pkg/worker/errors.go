package worker

import "errors"

// Sentinel errors for the worker's task lifecycle, checked with
// errors.Is rather than string matching.
var (
	// ErrLockConflict means another worker already holds one or more of
	// the claimed task's predicted file patterns.
	ErrLockConflict = errors.New("worker: lock conflict, task requeued")

	// ErrNoCompletionSignal means the agent's final text contained
	// neither the sentinel nor a fallback completion phrase.
	ErrNoCompletionSignal = errors.New("worker: agent produced no completion signal")

	// ErrAgentFailed wraps a non-timeout agent subprocess error.
	ErrAgentFailed = errors.New("worker: agent invocation failed")
)
