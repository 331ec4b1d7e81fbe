package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row is absent or soft-deleted.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite database connection and schema lifecycle.
type Store struct {
	db *sql.DB
}

// Open initializes the database connection, creating directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer keeps append and soft-delete statements serialized.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema ensures baseline tables exist.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			age INTEGER NOT NULL DEFAULT 0,
			gender TEXT NOT NULL DEFAULT '',
			ethnicity TEXT NOT NULL DEFAULT '',
			health_issues TEXT NOT NULL DEFAULT '[]',
			questionnaire TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			deleted INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			length REAL NOT NULL,
			width REAL NOT NULL,
			height REAL NOT NULL,
			occupancy INTEGER NOT NULL,
			devices TEXT NOT NULL DEFAULT '[]',
			appliances TEXT NOT NULL DEFAULT '[]',
			doors INTEGER NOT NULL DEFAULT 1,
			windows INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			deleted INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_user ON rooms(user_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS node_readings (
			id TEXT PRIMARY KEY,
			device_key TEXT NOT NULL,
			sample TEXT NOT NULL,
			source_ts TEXT NOT NULL,
			ingested_at TEXT NOT NULL,
			deleted INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_node_readings_device_ts ON node_readings(device_key, source_ts);`,
		`CREATE TABLE IF NOT EXISTS outdoor_readings (
			id TEXT PRIMARY KEY,
			recorded_at TEXT NOT NULL,
			measurements TEXT NOT NULL,
			metadata TEXT NOT NULL,
			ingested_at TEXT NOT NULL,
			deleted INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_outdoor_readings_ts ON outdoor_readings(recorded_at);`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			snapshot TEXT NOT NULL,
			recheck_minutes INTEGER NOT NULL DEFAULT 5,
			computed_at TEXT NOT NULL,
			created_at TEXT NOT NULL,
			deleted INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_room_user ON recommendations(room_id, user_id, computed_at);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			room_id TEXT,
			exchanges TEXT NOT NULL DEFAULT '[]',
			last_activity_at TEXT NOT NULL,
			created_at TEXT NOT NULL,
			deleted INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user_activity ON conversations(user_id, last_activity_at);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// marshalJSON encodes a document column, mapping nil to its empty form so the
// NOT NULL columns never see a literal "null".
func marshalJSON(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

func marshalJSONList(v []any) (string, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

func unmarshalJSON(data string, v any) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}
