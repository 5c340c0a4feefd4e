// Package store implements the coordination store: the single-writer,
// transactional source of truth for runs, tasks, workers, file locks,
// completed-task hashes, and cost records.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/taskswarm/swarmctl/pkg/log"
)

// Store is the coordination store. Writes go through db (a single
// connection modeling the single-writer contract); reads that don't
// need to observe a just-committed write can use the pooled readDB.
type Store struct {
	db     *sql.DB
	readDB *sql.DB
	path   string
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	status          TEXT NOT NULL,
	source_type     TEXT NOT NULL,
	source_path     TEXT NOT NULL,
	source_hash     TEXT NOT NULL,
	prompt          TEXT NOT NULL DEFAULT '',
	worker_count    INTEGER NOT NULL,
	total_tasks     INTEGER NOT NULL DEFAULT 0,
	completed_tasks INTEGER NOT NULL DEFAULT 0,
	failed_tasks    INTEGER NOT NULL DEFAULT 0,
	started_at      DATETIME NOT NULL,
	completed_at    DATETIME
);

CREATE TABLE IF NOT EXISTS tasks (
	id              INTEGER NOT NULL,
	run_id          TEXT NOT NULL REFERENCES runs(run_id),
	task_text       TEXT NOT NULL,
	task_hash       TEXT NOT NULL,
	priority        INTEGER NOT NULL DEFAULT 0,
	estimated_files TEXT NOT NULL DEFAULT '[]',
	actual_files    TEXT NOT NULL DEFAULT '[]',
	devplan_line    INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	worker_id       TEXT REFERENCES workers(id),
	stall_count     INTEGER NOT NULL DEFAULT 0,
	error_message   TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	started_at      DATETIME,
	completed_at    DATETIME,
	PRIMARY KEY (run_id, id)
);
CREATE INDEX IF NOT EXISTS idx_tasks_run_status ON tasks(run_id, status);
CREATE INDEX IF NOT EXISTS idx_tasks_hash ON tasks(task_hash);
CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_one_in_progress
	ON tasks(id) WHERE status = 'in_progress';

CREATE TABLE IF NOT EXISTS workers (
	id              TEXT PRIMARY KEY,
	run_id          TEXT NOT NULL REFERENCES runs(run_id),
	worker_num      INTEGER NOT NULL,
	pid             INTEGER NOT NULL DEFAULT 0,
	pid_start_time  INTEGER NOT NULL DEFAULT 0,
	branch_name     TEXT NOT NULL,
	status          TEXT NOT NULL,
	current_task_id INTEGER,
	work_dir        TEXT NOT NULL,
	started_at      DATETIME NOT NULL,
	last_heartbeat  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workers_run_status ON workers(run_id, status);

CREATE TABLE IF NOT EXISTS file_locks (
	run_id      TEXT NOT NULL REFERENCES runs(run_id),
	pattern     TEXT NOT NULL,
	worker_id   TEXT NOT NULL REFERENCES workers(id),
	task_id     INTEGER NOT NULL,
	acquired_at DATETIME NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_locks_run_pattern ON file_locks(run_id, pattern);
CREATE INDEX IF NOT EXISTS idx_locks_worker ON file_locks(worker_id);

CREATE TABLE IF NOT EXISTS completed_tasks (
	task_hash    TEXT PRIMARY KEY,
	task_text    TEXT NOT NULL,
	source_hash  TEXT NOT NULL,
	completed_at DATETIME NOT NULL,
	run_id       TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_completed_source_hash
	ON completed_tasks(source_hash, task_hash);

CREATE TABLE IF NOT EXISTS task_costs (
	task_id           INTEGER NOT NULL,
	run_id            TEXT NOT NULL,
	prompt_tokens     INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	cost              REAL NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_costs_run_task ON task_costs(run_id, task_id);

CREATE TABLE IF NOT EXISTS worker_registry (
	worker_id      TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL,
	worker_num     INTEGER NOT NULL,
	pid            INTEGER NOT NULL,
	pid_start_time INTEGER NOT NULL DEFAULT 0,
	started_at     DATETIME NOT NULL,
	last_heartbeat DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Open opens (creating if necessary) the coordination store at path,
// applies PRAGMAs, and runs the schema migration.
func Open(path string) (*Store, error) {
	writeDSN := fmt.Sprintf("file:%s?_txlock=immediate", path)
	db, err := sql.Open("sqlite", writeDSN)
	if err != nil {
		return nil, fmt.Errorf("store: open writer: %w", err)
	}
	db.SetMaxOpenConns(1)

	readDSN := fmt.Sprintf("file:%s?mode=ro", path)
	readDB, err := sql.Open("sqlite", readDSN)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: open reader: %w", err)
	}
	readDB.SetMaxOpenConns(4)

	s := &Store{db: db, readDB: readDB, path: path}
	if err := s.init(); err != nil {
		db.Close()
		readDB.Close()
		return nil, err
	}
	if _, err := s.readDB.Exec("PRAGMA busy_timeout = 120000"); err != nil {
		s.Close()
		return nil, fmt.Errorf("store: reader pragma: %w", err)
	}
	return s, nil
}

func (s *Store) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 120000",
		"PRAGMA cache_size = -65536",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: migrate schema: %w", err)
	}
	log.WithComponent("store").Info().Str("path", s.path).Msg("coordination store ready")
	return nil
}

// Close closes both connections.
func (s *Store) Close() error {
	rerr := s.readDB.Close()
	werr := s.db.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Path returns the database file path this store was opened from.
func (s *Store) Path() string {
	return s.path
}
