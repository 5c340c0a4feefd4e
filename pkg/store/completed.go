package store

import (
	"database/sql"
	"errors"
)

// IsTaskCompleted reports whether taskHash has a durable CompletedTask
// record, irrespective of which run produced it.
func (s *Store) IsTaskCompleted(taskHash string) (bool, error) {
	var count int
	err := s.readDB.QueryRow(`SELECT COUNT(*) FROM completed_tasks WHERE task_hash = ?`, taskHash).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetCompletedTaskHashes returns every task_hash completed under a given
// source_hash.
func (s *Store) GetCompletedTaskHashes(sourceHash string) ([]string, error) {
	rows, err := s.readDB.Query(`SELECT task_hash FROM completed_tasks WHERE source_hash = ?`, sourceHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// completedAtFor looks up the completed_at of a hash within an open
// transaction, used by ResumeRun to promote an in_progress task whose
// work already finished under a prior run.
func completedAtFor(tx *sql.Tx, taskHash string) (completedAt sql.NullTime, found bool, err error) {
	err = tx.QueryRow(`SELECT completed_at FROM completed_tasks WHERE task_hash = ?`, taskHash).Scan(&completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sql.NullTime{}, false, nil
	}
	if err != nil {
		return sql.NullTime{}, false, err
	}
	return completedAt, true, nil
}
