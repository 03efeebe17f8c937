package replica

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Register sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id         TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLite is a Backend persisted to a local database file, so peer saves
// survive restarts while the relay is unreachable
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: sqlite serialises writers anyway, and :memory: is per-connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Load returns a document by id
func (s *SQLite) Load(id string) ([]byte, bool, error) {
	var raw []byte
	err := s.db.QueryRow(`SELECT body FROM profiles WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %q: %w", id, err)
	}
	return raw, true, nil
}

// LoadAll returns every document ordered by id
func (s *SQLite) LoadAll() ([][]byte, error) {
	rows, err := s.db.Query(`SELECT body FROM profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load all: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, raw)
	}
	return out, rows.Err()
}

// Store upserts a document
func (s *SQLite) Store(id string, raw []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO profiles (id, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		id, raw, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store %q: %w", id, err)
	}
	return nil
}
