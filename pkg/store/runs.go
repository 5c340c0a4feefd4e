package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/taskswarm/swarmctl/pkg/metrics"
	"github.com/taskswarm/swarmctl/pkg/types"
)

// StartRun creates a new run in the running state. Callers are
// responsible for deduplication via FindExistingRun.
func (s *Store) StartRun(sourceType, sourcePath, sourceHash, prompt string, workerCount int) (string, error) {
	runID := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, status, source_type, source_path, source_hash, prompt, worker_count, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, types.RunStatusRunning, sourceType, sourcePath, sourceHash, prompt, workerCount, now,
	)
	if err != nil {
		return "", err
	}
	return runID, nil
}

// GetRun fetches a run by id from the read pool.
func (s *Store) GetRun(runID string) (*types.Run, error) {
	return s.scanRun(s.readDB.QueryRow(runQuery+" WHERE run_id = ?", runID))
}

const runQuery = `SELECT run_id, status, source_type, source_path, source_hash, prompt,
	worker_count, total_tasks, completed_tasks, failed_tasks, started_at, completed_at FROM runs`

func (s *Store) scanRun(row *sql.Row) (*types.Run, error) {
	var r types.Run
	var completedAt sql.NullTime
	err := row.Scan(&r.ID, &r.Status, &r.SourceType, &r.SourcePath, &r.SourceHash, &r.Prompt,
		&r.WorkerCount, &r.TotalTasks, &r.CompletedTasks, &r.FailedTasks, &r.StartedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		r.CompletedAt = completedAt.Time
	}
	return &r, nil
}

// ListRuns returns every run, most recently started first.
func (s *Store) ListRuns() ([]*types.Run, error) {
	rows, err := s.readDB.Query(runQuery + " ORDER BY started_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Run
	for rows.Next() {
		var r types.Run
		var completedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.Status, &r.SourceType, &r.SourcePath, &r.SourceHash, &r.Prompt,
			&r.WorkerCount, &r.TotalTasks, &r.CompletedTasks, &r.FailedTasks, &r.StartedAt, &completedAt); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			r.CompletedAt = completedAt.Time
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// FindExistingRun returns the latest running run with the given
// source_hash, or ErrRunNotFound if none exists.
func (s *Store) FindExistingRun(sourceHash string) (*types.Run, error) {
	row := s.readDB.QueryRow(
		runQuery+` WHERE source_hash = ? AND status = ? ORDER BY started_at DESC LIMIT 1`,
		sourceHash, types.RunStatusRunning,
	)
	return s.scanRun(row)
}

// markRunTerminalIfDone recomputes the run's completed status inline with a
// completion or failure write, inside the same transaction as the caller.
// It reports whether this call was the one that transitioned the run to
// completed, so the caller can increment RunsTotal exactly once.
func markRunTerminalIfDone(tx *sql.Tx, runID string) (bool, error) {
	var total, completed int
	var pendingOrInProgress int
	if err := tx.QueryRow(`SELECT total_tasks, completed_tasks FROM runs WHERE run_id = ?`, runID).
		Scan(&total, &completed); err != nil {
		return false, err
	}
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM tasks WHERE run_id = ? AND status IN ('pending', 'in_progress')`, runID,
	).Scan(&pendingOrInProgress); err != nil {
		return false, err
	}
	if completed >= total || pendingOrInProgress == 0 {
		res, err := tx.Exec(
			`UPDATE runs SET status = ?, completed_at = ? WHERE run_id = ? AND status = ?`,
			types.RunStatusCompleted, time.Now().UTC(), runID, types.RunStatusRunning,
		)
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if n > 0 {
			metrics.RunsTotal.WithLabelValues("completed").Inc()
			return true, nil
		}
	}
	return false, nil
}

// SetRunInterrupted marks a run interrupted, used by the coordinator
// when it must abort (e.g. zero alive workers).
func (s *Store) SetRunInterrupted(runID string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ? WHERE run_id = ?`,
		types.RunStatusInterrupted, time.Now().UTC(), runID,
	)
	if err != nil {
		return err
	}
	metrics.RunsTotal.WithLabelValues("interrupted").Inc()
	return nil
}
