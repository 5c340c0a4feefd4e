package store

import (
	"time"

	"github.com/taskswarm/swarmctl/pkg/types"
)

// ResumeRun performs atomic crash recovery for a run: every worker is
// stopped and its current_task_id cleared, every file lock for the run
// is dropped, every in_progress task is either promoted to completed
// (if CompletedTask already has its hash, meaning the work actually
// finished under a prior attempt) or reset to pending with
// stall_count+=1, and the run itself goes back to running with
// completed_at cleared; if no task is left pending or in_progress, the
// same transaction then marks the run completed again. started_at is
// never touched.
func (s *Store) ResumeRun(runID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE workers SET status = 'stopped', current_task_id = NULL WHERE run_id = ?`, runID,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM file_locks WHERE run_id = ?`, runID); err != nil {
		return err
	}

	rows, err := tx.Query(
		`SELECT id, task_hash FROM tasks WHERE run_id = ? AND status = 'in_progress'`, runID,
	)
	if err != nil {
		return err
	}
	type inProgress struct {
		id   int64
		hash string
	}
	var tasks []inProgress
	for rows.Next() {
		var ip inProgress
		if err := rows.Scan(&ip.id, &ip.hash); err != nil {
			rows.Close()
			return err
		}
		tasks = append(tasks, ip)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, t := range tasks {
		completedAt, found, err := completedAtFor(tx, t.hash)
		if err != nil {
			return err
		}
		if found {
			var ts time.Time
			if completedAt.Valid {
				ts = completedAt.Time
			} else {
				ts = time.Now().UTC()
			}
			if _, err := tx.Exec(
				`UPDATE tasks SET status = ?, completed_at = ? WHERE run_id = ? AND id = ?`,
				types.TaskStatusCompleted, ts, runID, t.id,
			); err != nil {
				return err
			}
			if _, err := tx.Exec(`UPDATE runs SET completed_tasks = completed_tasks + 1 WHERE run_id = ?`, runID); err != nil {
				return err
			}
			continue
		}

		if _, err := tx.Exec(
			`UPDATE tasks SET status = 'pending', stall_count = stall_count + 1, worker_id = NULL, started_at = NULL
			 WHERE run_id = ? AND id = ?`,
			runID, t.id,
		); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(
		`UPDATE runs SET status = ?, completed_at = NULL WHERE run_id = ?`,
		types.RunStatusRunning, runID,
	); err != nil {
		return err
	}

	if _, err := markRunTerminalIfDone(tx, runID); err != nil {
		return err
	}

	return tx.Commit()
}
