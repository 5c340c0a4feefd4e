package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/taskswarm/swarmctl/pkg/metrics"
)

// AcquireLocks attempts to insert one FileLock row per pattern for
// workerID/taskID. Acquisition is partial by design: patterns already
// held by another worker are skipped and reported back as conflicts,
// while patterns the caller doesn't yet hold are acquired. The caller
// decides whether a non-empty conflict list means requeueing the task.
func (s *Store) AcquireLocks(runID, workerID string, taskID int64, patterns []string) (conflicts []string, err error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var acquired int
	for _, p := range patterns {
		var holder string
		err := tx.QueryRow(`SELECT worker_id FROM file_locks WHERE run_id = ? AND pattern = ?`, runID, p).Scan(&holder)
		if err == nil {
			if holder != workerID {
				conflicts = append(conflicts, p)
			}
			continue
		}

		if _, err := tx.Exec(
			`INSERT INTO file_locks (run_id, pattern, worker_id, task_id, acquired_at) VALUES (?, ?, ?, ?, ?)`,
			runID, p, workerID, taskID, now,
		); err != nil {
			return nil, err
		}
		acquired++
	}

	if len(conflicts) > 0 {
		metrics.LockConflictsTotal.Inc()
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if acquired > 0 {
		metrics.LocksHeld.Add(float64(acquired))
	}
	return conflicts, nil
}

// ReleaseLocks deletes every FileLock row held by workerID.
func (s *Store) ReleaseLocks(workerID string) error {
	res, err := s.db.Exec(`DELETE FROM file_locks WHERE worker_id = ?`, workerID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		metrics.LocksHeld.Sub(float64(n))
	}
	return nil
}

// CheckConflicts returns the worker_id holding pattern in runID, or ""
// if unheld.
func (s *Store) CheckConflicts(runID, pattern string) (string, error) {
	var holder string
	err := s.readDB.QueryRow(
		`SELECT worker_id FROM file_locks WHERE run_id = ? AND pattern = ?`, runID, pattern,
	).Scan(&holder)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return holder, nil
}
