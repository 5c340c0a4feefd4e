package store

import (
	"database/sql"
	"errors"
)

// GetConfigValue reads a process-wide config key, returning ("", false)
// if unset.
func (s *Store) GetConfigValue(key string) (string, bool, error) {
	var value string
	err := s.readDB.QueryRow(`SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetConfigValue upserts a process-wide config key.
func (s *Store) SetConfigValue(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO config (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}
