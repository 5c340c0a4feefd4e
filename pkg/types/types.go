// Package types defines the data model shared across the coordination
// store, the worker, the scheduler, and the merger.
package types

import "time"

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusInterrupted RunStatus = "interrupted"
)

// Run tracks one invocation of the swarm against a devplan.
type Run struct {
	ID             string
	Status         RunStatus
	SourceType     string
	SourcePath     string
	SourceHash     string
	Prompt         string
	WorkerCount    int
	TotalTasks     int
	CompletedTasks int
	FailedTasks    int
	StartedAt      time.Time
	CompletedAt    time.Time
}

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is a unit of developer intent parsed from the devplan.
type Task struct {
	ID             int64
	RunID          string
	TaskText       string
	TaskHash       string
	Priority       int
	EstimatedFiles []string
	ActualFiles    []string
	DevplanLine    int
	Status         TaskStatus
	WorkerID       string
	StallCount     int
	ErrorMessage   string
	CreatedAt      time.Time
	StartedAt      time.Time
	CompletedAt    time.Time
}

// WorkerStatus is the lifecycle state of a Worker row.
type WorkerStatus string

const (
	WorkerStatusIdle       WorkerStatus = "idle"
	WorkerStatusInProgress WorkerStatus = "in_progress"
	WorkerStatusStopped    WorkerStatus = "stopped"
)

// Worker is a detached OS process bound to one git worktree.
type Worker struct {
	ID            string
	RunID         string
	WorkerNum     int
	PID           int
	PIDStartTime  int64
	BranchName    string
	Status        WorkerStatus
	CurrentTaskID int64
	WorkDir       string
	StartedAt     time.Time
	LastHeartbeat time.Time
}

// FileLock is an advisory claim on a predicted file pattern.
type FileLock struct {
	RunID      string
	Pattern    string
	WorkerID   string
	TaskID     int64
	AcquiredAt time.Time
}

// CompletedTask is the durable cross-run idempotency record.
type CompletedTask struct {
	TaskHash    string
	TaskText    string
	SourceHash  string
	CompletedAt time.Time
	RunID       string
}

// TaskCost is best-effort token/cost telemetry for one task.
type TaskCost struct {
	TaskID           int64
	PromptTokens     int64
	CompletionTokens int64
	Cost             float64
	CreatedAt        time.Time
}

// WorkerRegistryEntry is the process-liveness view of a worker,
// decoupled from the Worker row so stale records can be reaped
// independently of the worker's task-lifecycle state.
type WorkerRegistryEntry struct {
	WorkerID      string
	RunID         string
	WorkerNum     int
	PID           int
	PIDStartTime  int64
	StartedAt     time.Time
	LastHeartbeat time.Time
}
