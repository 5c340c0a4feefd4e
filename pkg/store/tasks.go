package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/taskswarm/swarmctl/pkg/metrics"
	"github.com/taskswarm/swarmctl/pkg/types"
)

// TaskHash computes the durable idempotency digest of a task's exact
// text. Hashing happens over the bytes as given; callers must decide
// once, for the whole system, whether text is normalised before this
// call and never mix the two.
func TaskHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// AddTask inserts a pending task, unless its hash already exists in
// CompletedTask, in which case it reports skipped without inserting.
func (s *Store) AddTask(runID, text string, estimatedFiles []string, devplanLine, priority int) (id int64, skipped bool, err error) {
	hash := TaskHash(text)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM completed_tasks WHERE task_hash = ?`, hash).Scan(&exists); err != nil {
		return 0, false, err
	}
	if exists > 0 {
		return 0, true, tx.Commit()
	}

	efJSON, err := json.Marshal(estimatedFiles)
	if err != nil {
		return 0, false, err
	}

	var nextID int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(id), 0) + 1 FROM tasks WHERE run_id = ?`, runID).Scan(&nextID); err != nil {
		return 0, false, err
	}

	now := time.Now().UTC()
	_, err = tx.Exec(
		`INSERT INTO tasks (id, run_id, task_text, task_hash, priority, estimated_files, devplan_line, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nextID, runID, text, hash, priority, string(efJSON), devplanLine, types.TaskStatusPending, now,
	)
	if err != nil {
		return 0, false, err
	}

	if _, err := tx.Exec(
		`UPDATE runs SET total_tasks = (SELECT COUNT(*) FROM tasks WHERE run_id = ?) WHERE run_id = ?`,
		runID, runID,
	); err != nil {
		return 0, false, err
	}

	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	return nextID, false, nil
}

// ClaimedTask is what ClaimTask hands back to a worker.
type ClaimedTask struct {
	ID             int64
	TaskText       string
	EstimatedFiles []string
	DevplanLine    int
}

// ClaimTask atomically claims the lowest-priority, lowest-id pending
// task in runID for workerID. Returns ErrNoTask if nothing is pending.
// Transient SQLite lock contention from concurrent claimants is
// retried with bounded exponential backoff.
func (s *Store) ClaimTask(runID, workerID string) (*ClaimedTask, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ClaimLatency)

	const maxAttempts = 20
	backoff := 100 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			metrics.ClaimContentionTotal.Inc()
			time.Sleep(backoff)
			backoff = time.Duration(math.Round(float64(backoff) * 1.5))
		}

		task, err := s.claimTaskOnce(runID, workerID)
		if err == nil {
			metrics.TasksScheduled.Inc()
			return task, nil
		}
		if errors.Is(err, ErrNoTask) {
			return nil, ErrNoTask
		}
		if !errors.Is(err, ErrClaimLost) && !isBusyErr(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *Store) claimTaskOnce(runID, workerID string) (*ClaimedTask, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var id int64
	var text, efJSON string
	var devplanLine int
	err = tx.QueryRow(
		`SELECT id, task_text, estimated_files, devplan_line FROM tasks
		 WHERE run_id = ? AND status = 'pending'
		 ORDER BY priority ASC, id ASC LIMIT 1`,
		runID,
	).Scan(&id, &text, &efJSON, &devplanLine)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoTask
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := tx.Exec(
		`UPDATE tasks SET status = 'in_progress', worker_id = ?, started_at = ?
		 WHERE run_id = ? AND id = ? AND status = 'pending'`,
		workerID, now, runID, id,
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, ErrClaimLost
	}

	// Re-verify the row reflects this worker's claim. The check runs
	// inside the transaction, before commit; the row is not read again
	// after the commit.
	var gotWorker string
	if err := tx.QueryRow(`SELECT worker_id FROM tasks WHERE run_id = ? AND id = ?`, runID, id).
		Scan(&gotWorker); err != nil {
		return nil, err
	}
	if gotWorker != workerID {
		return nil, ErrClaimLost
	}

	if _, err := tx.Exec(`UPDATE workers SET status = 'in_progress', current_task_id = ? WHERE id = ?`, id, workerID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	var estimatedFiles []string
	_ = json.Unmarshal([]byte(efJSON), &estimatedFiles)

	return &ClaimedTask{ID: id, TaskText: text, EstimatedFiles: estimatedFiles, DevplanLine: devplanLine}, nil
}

// CompleteTask transitions a task from in_progress to completed, records
// its CompletedTask row (INSERT OR IGNORE, so re-completion is a no-op),
// and advances run bookkeeping.
func (s *Store) CompleteTask(runID string, taskID int64, actualFiles []string, workerID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status, curWorker, taskHash, taskText, sourceHash string
	if err := tx.QueryRow(
		`SELECT t.status, t.worker_id, t.task_hash, t.task_text, r.source_hash
		 FROM tasks t JOIN runs r ON r.run_id = t.run_id
		 WHERE t.run_id = ? AND t.id = ?`,
		runID, taskID,
	).Scan(&status, &curWorker, &taskHash, &taskText, &sourceHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTaskNotFound
		}
		return err
	}
	if status != string(types.TaskStatusInProgress) || curWorker != workerID {
		return ErrTaskNotInProgress
	}

	afJSON, err := json.Marshal(actualFiles)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	if _, err := tx.Exec(
		`UPDATE tasks SET status = ?, actual_files = ?, completed_at = ? WHERE run_id = ? AND id = ?`,
		types.TaskStatusCompleted, string(afJSON), now, runID, taskID,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO completed_tasks (task_hash, task_text, source_hash, completed_at, run_id)
		 VALUES (?, ?, ?, ?, ?)`,
		taskHash, taskText, sourceHash, now, runID,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(`UPDATE runs SET completed_tasks = completed_tasks + 1 WHERE run_id = ?`, runID); err != nil {
		return err
	}

	if _, err := tx.Exec(`UPDATE workers SET status = 'idle', current_task_id = NULL WHERE id = ?`, workerID); err != nil {
		return err
	}

	if _, err := markRunTerminalIfDone(tx, runID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	metrics.TasksCompleted.Inc()
	return nil
}

// FailTask transitions a task to failed and records the error.
func (s *Store) FailTask(runID string, taskID int64, workerID, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE tasks SET status = ?, error_message = ?, completed_at = ?
		 WHERE run_id = ? AND id = ? AND worker_id = ? AND status = 'in_progress'`,
		types.TaskStatusFailed, errMsg, time.Now().UTC(), runID, taskID, workerID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return ErrTaskNotInProgress
	}

	if _, err := tx.Exec(`UPDATE runs SET failed_tasks = failed_tasks + 1 WHERE run_id = ?`, runID); err != nil {
		return err
	}

	if _, err := tx.Exec(`UPDATE workers SET status = 'idle', current_task_id = NULL WHERE id = ?`, workerID); err != nil {
		return err
	}

	if _, err := markRunTerminalIfDone(tx, runID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	metrics.TasksFailed.Inc()
	return nil
}

// RequeueTask resets an in_progress task owned by workerID back to
// pending with stall_count+=1, without marking it failed. This is the
// worker's own escape hatch when a lock conflict means the claim can't
// proceed, distinct from FailTask, which is for
// actual execution failures.
func (s *Store) RequeueTask(runID string, taskID int64, workerID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE tasks SET status = 'pending', stall_count = stall_count + 1, worker_id = NULL, started_at = NULL
		 WHERE run_id = ? AND id = ? AND worker_id = ? AND status = 'in_progress'`,
		runID, taskID, workerID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return ErrTaskNotInProgress
	}

	if _, err := tx.Exec(`UPDATE workers SET status = 'idle', current_task_id = NULL WHERE id = ?`, workerID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	metrics.TasksRequeued.WithLabelValues("lock_conflict").Inc()
	return nil
}

// RetryFailed resets failed tasks with stall_count < maxRetries back to
// pending, incrementing stall_count, and returns how many were reset.
func (s *Store) RetryFailed(runID string, maxRetries int) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE tasks SET status = 'pending', stall_count = stall_count + 1, worker_id = NULL,
		 started_at = NULL, error_message = ''
		 WHERE run_id = ? AND status = 'failed' AND stall_count < ?`,
		runID, maxRetries,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if _, err := tx.Exec(`UPDATE runs SET failed_tasks = failed_tasks - ? WHERE run_id = ?`, n, runID); err != nil {
			return 0, err
		}
		metrics.TasksRequeued.WithLabelValues("retry").Add(float64(n))
	}

	return int(n), tx.Commit()
}

// PendingTaskCount reports how many tasks in runID are pending or
// in_progress, the scheduler's termination check.
func (s *Store) PendingTaskCount(runID string) (int, error) {
	var n int
	err := s.readDB.QueryRow(
		`SELECT COUNT(*) FROM tasks WHERE run_id = ? AND status IN ('pending', 'in_progress')`, runID,
	).Scan(&n)
	return n, err
}

// ReapOrphanTasks requeues any in_progress task whose worker_id no
// longer names a worker that is itself in_progress (the worker was
// already reaped, or never transitioned its own state, leaving the
// task stranded). This backstops ReapDeadWorkers and CleanupStaleWorkers,
// which normally requeue a dying worker's current task directly.
func (s *Store) ReapOrphanTasks(runID string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE tasks SET status = 'pending', stall_count = stall_count + 1, worker_id = NULL, started_at = NULL
		 WHERE run_id = ? AND status = 'in_progress' AND (
		 	worker_id IS NULL OR worker_id NOT IN (
		 		SELECT id FROM workers WHERE run_id = ? AND status = 'in_progress'
		 	)
		 )`,
		runID, runID,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.TasksRequeued.WithLabelValues("orphan").Add(float64(n))
	}
	return int(n), tx.Commit()
}

// GetTask fetches a single task by (run_id, id) from the read pool.
func (s *Store) GetTask(runID string, id int64) (*types.Task, error) {
	row := s.readDB.QueryRow(taskQuery+` WHERE run_id = ? AND id = ?`, runID, id)
	return scanTask(row)
}

// ListTasks lists all tasks for a run, ordered by priority then id.
func (s *Store) ListTasks(runID string) ([]*types.Task, error) {
	rows, err := s.readDB.Query(taskQuery+` WHERE run_id = ? ORDER BY priority ASC, id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Task
	for rows.Next() {
		t, err := scanTaskRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const taskQuery = `SELECT id, run_id, task_text, task_hash, priority, estimated_files, actual_files,
	devplan_line, status, COALESCE(worker_id, ''), stall_count, error_message, created_at, started_at, completed_at
	FROM tasks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row *sql.Row) (*types.Task, error) {
	t, err := scanTaskFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	return t, err
}

func scanTaskRows(rows *sql.Rows) (*types.Task, error) {
	return scanTaskFrom(rows)
}

func scanTaskFrom(r rowScanner) (*types.Task, error) {
	var t types.Task
	var efJSON, afJSON string
	var startedAt, completedAt sql.NullTime
	err := r.Scan(&t.ID, &t.RunID, &t.TaskText, &t.TaskHash, &t.Priority, &efJSON, &afJSON,
		&t.DevplanLine, &t.Status, &t.WorkerID, &t.StallCount, &t.ErrorMessage, &t.CreatedAt,
		&startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(efJSON), &t.EstimatedFiles)
	_ = json.Unmarshal([]byte(afJSON), &t.ActualFiles)
	if startedAt.Valid {
		t.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = completedAt.Time
	}
	return &t, nil
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
