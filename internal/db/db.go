// Package db provides the SQLite connection and schema for blinkd.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Effect runs - append-only history of every triggered effect
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS effect_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			effect TEXT NOT NULL,
			source TEXT NOT NULL,
			user TEXT,
			outcome TEXT NOT NULL,
			took_ms INTEGER NOT NULL,
			started_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_effect_ts ON effect_runs(effect, started_at);
		CREATE INDEX IF NOT EXISTS idx_runs_ts ON effect_runs(started_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to create effect_runs table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
