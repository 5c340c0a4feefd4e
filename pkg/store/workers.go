package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/taskswarm/swarmctl/pkg/metrics"
	"github.com/taskswarm/swarmctl/pkg/procutil"
	"github.com/taskswarm/swarmctl/pkg/types"
)

// RegisterWorker creates a new worker row in idle status and a matching
// worker_registry entry for liveness tracking. pid's start time is
// recorded too, if readable, so a later liveness sweep can tell a live
// worker apart from an unrelated process that has recycled its pid.
func (s *Store) RegisterWorker(runID string, workerNum, pid int, branch, workDir string) (string, error) {
	workerID := uuid.New().String()
	now := time.Now().UTC()
	startTime, _ := procutil.StartTime(pid)

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO workers (id, run_id, worker_num, pid, pid_start_time, branch_name, status, work_dir, started_at, last_heartbeat)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		workerID, runID, workerNum, pid, startTime, branch, types.WorkerStatusIdle, workDir, now, now,
	); err != nil {
		return "", err
	}

	if _, err := tx.Exec(
		`INSERT INTO worker_registry (worker_id, run_id, worker_num, pid, pid_start_time, started_at, last_heartbeat)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		workerID, runID, workerNum, pid, startTime, now, now,
	); err != nil {
		return "", err
	}

	return workerID, tx.Commit()
}

// UpdateWorkerPID updates the pid (and its start time) recorded for a
// worker, used by the coordinator once it has the actual spawned
// process id.
func (s *Store) UpdateWorkerPID(workerID string, pid int) error {
	startTime, _ := procutil.StartTime(pid)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE workers SET pid = ?, pid_start_time = ? WHERE id = ?`, pid, startTime, workerID); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE worker_registry SET pid = ?, pid_start_time = ? WHERE worker_id = ?`, pid, startTime, workerID); err != nil {
		return err
	}
	return tx.Commit()
}

// WorkerHeartbeat sets last_heartbeat = now for both the worker row and
// its registry entry.
func (s *Store) WorkerHeartbeat(workerID string) error {
	now := time.Now().UTC()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE workers SET last_heartbeat = ? WHERE id = ?`, now, workerID); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE worker_registry SET last_heartbeat = ? WHERE worker_id = ?`, now, workerID); err != nil {
		return err
	}
	return tx.Commit()
}

// SetWorkerStatus sets a worker's status directly.
func (s *Store) SetWorkerStatus(workerID string, status types.WorkerStatus) error {
	_, err := s.db.Exec(`UPDATE workers SET status = ? WHERE id = ?`, status, workerID)
	return err
}

// GetWorker fetches one worker row.
func (s *Store) GetWorker(workerID string) (*types.Worker, error) {
	row := s.readDB.QueryRow(workerQuery+` WHERE id = ?`, workerID)
	return scanWorker(row)
}

// ListWorkers lists all workers for a run.
func (s *Store) ListWorkers(runID string) ([]*types.Worker, error) {
	rows, err := s.readDB.Query(workerQuery+` WHERE run_id = ? ORDER BY worker_num ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Worker
	for rows.Next() {
		var w types.Worker
		var currentTaskID sql.NullInt64
		if err := rows.Scan(&w.ID, &w.RunID, &w.WorkerNum, &w.PID, &w.PIDStartTime, &w.BranchName, &w.Status,
			&currentTaskID, &w.WorkDir, &w.StartedAt, &w.LastHeartbeat); err != nil {
			return nil, err
		}
		if currentTaskID.Valid {
			w.CurrentTaskID = currentTaskID.Int64
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// AliveWorkerCount reports how many workers for runID are not stopped.
func (s *Store) AliveWorkerCount(runID string) (int, error) {
	var n int
	err := s.readDB.QueryRow(
		`SELECT COUNT(*) FROM workers WHERE run_id = ? AND status != 'stopped'`, runID,
	).Scan(&n)
	return n, err
}

const workerQuery = `SELECT id, run_id, worker_num, pid, pid_start_time, branch_name, status, current_task_id,
	work_dir, started_at, last_heartbeat FROM workers`

func scanWorker(row *sql.Row) (*types.Worker, error) {
	var w types.Worker
	var currentTaskID sql.NullInt64
	err := row.Scan(&w.ID, &w.RunID, &w.WorkerNum, &w.PID, &w.PIDStartTime, &w.BranchName, &w.Status,
		&currentTaskID, &w.WorkDir, &w.StartedAt, &w.LastHeartbeat)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("store: worker not found")
	}
	if err != nil {
		return nil, err
	}
	if currentTaskID.Valid {
		w.CurrentTaskID = currentTaskID.Int64
	}
	return &w, nil
}

// CleanupStaleWorkers finds workers whose last_heartbeat is older than
// threshold and whose status isn't already stopped, requeues their
// current task, releases their locks, and marks them stopped. Returns
// the number of workers reaped. This backs the scheduler's dead-worker
// sweep (the scheduler itself decides whether a pid is alive; this
// variant reaps purely on heartbeat staleness, used as a backstop for
// workers that stopped heartbeating without their process actually
// dying, e.g. wedged in the agent subprocess).
func (s *Store) CleanupStaleWorkers(runID string, threshold time.Duration) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	cutoff := time.Now().UTC().Add(-threshold)
	rows, err := tx.Query(
		`SELECT id, current_task_id FROM workers
		 WHERE run_id = ? AND status != 'stopped' AND last_heartbeat < ?`,
		runID, cutoff,
	)
	if err != nil {
		return 0, err
	}
	type stale struct {
		id   string
		task sql.NullInt64
	}
	var staleWorkers []stale
	for rows.Next() {
		var sw stale
		if err := rows.Scan(&sw.id, &sw.task); err != nil {
			rows.Close()
			return 0, err
		}
		staleWorkers = append(staleWorkers, sw)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, sw := range staleWorkers {
		if err := reapWorkerTx(tx, runID, sw.id, sw.task); err != nil {
			return 0, err
		}
	}

	if len(staleWorkers) > 0 {
		metrics.WorkersReaped.Add(float64(len(staleWorkers)))
	}

	return len(staleWorkers), tx.Commit()
}

// ReapDeadWorkers finds non-stopped workers for runID whose pid is no
// longer the process recorded at registration (exited, or recycled by
// an unrelated process), requeues their current task, releases their
// locks, and marks them stopped. This is the scheduler's primary
// dead-worker sweep; CleanupStaleWorkers is the heartbeat-based
// backstop for workers that wedge without their process dying.
func (s *Store) ReapDeadWorkers(runID string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id, pid, pid_start_time, current_task_id FROM workers
		 WHERE run_id = ? AND status != 'stopped'`,
		runID,
	)
	if err != nil {
		return 0, err
	}
	type candidate struct {
		id        string
		pid       int
		startTime int64
		task      sql.NullInt64
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.pid, &c.startTime, &c.task); err != nil {
			rows.Close()
			return 0, err
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var reaped int
	for _, c := range candidates {
		if procutil.IsSameProcess(c.pid, c.startTime) {
			continue
		}
		if err := reapWorkerTx(tx, runID, c.id, c.task); err != nil {
			return 0, err
		}
		reaped++
	}

	if reaped > 0 {
		metrics.WorkersReaped.Add(float64(reaped))
	}

	return reaped, tx.Commit()
}

// StopWorker forces a single worker to stopped regardless of pid
// liveness: its current task (if any) is requeued to pending and its
// locks are released, same as a dead-worker reap. Used by
// emergency-stop, where the caller has just sent the process a signal
// and isn't waiting for the next scheduler sweep to notice.
func (s *Store) StopWorker(runID, workerID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var currentTask sql.NullInt64
	if err := tx.QueryRow(`SELECT current_task_id FROM workers WHERE id = ?`, workerID).Scan(&currentTask); err != nil {
		return err
	}

	if err := reapWorkerTx(tx, runID, workerID, currentTask); err != nil {
		return err
	}

	return tx.Commit()
}

// reapWorkerTx requeues a worker's current task (if any) and releases
// its locks, within an already-open transaction.
func reapWorkerTx(tx *sql.Tx, runID, workerID string, currentTask sql.NullInt64) error {
	if currentTask.Valid {
		res, err := tx.Exec(
			`UPDATE tasks SET status = 'pending', stall_count = stall_count + 1, worker_id = NULL, started_at = NULL
			 WHERE run_id = ? AND id = ? AND status = 'in_progress'`,
			runID, currentTask.Int64,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			metrics.TasksRequeued.WithLabelValues("worker_death").Inc()
		}
	}

	if _, err := tx.Exec(`DELETE FROM file_locks WHERE worker_id = ?`, workerID); err != nil {
		return err
	}

	_, err := tx.Exec(
		`UPDATE workers SET status = 'stopped', current_task_id = NULL WHERE id = ?`,
		workerID,
	)
	return err
}
