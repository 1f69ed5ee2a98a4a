package sqlite

import (
	"database/sql"
	"fmt"
)

// migrations are applied in order; applied versions are tracked in
// schema_migrations.
var migrations = []string{
	// 001: embedding cache, one blob row per (entity_type, entity_id)
	`CREATE TABLE IF NOT EXISTS embeddings (
		entity_type  TEXT NOT NULL,
		entity_id    TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		model        TEXT NOT NULL,
		vector       BLOB NOT NULL,
		created_at   INTEGER NOT NULL,
		PRIMARY KEY (entity_type, entity_id)
	)`,

	// 002: correlation output, replaced wholesale each run
	`CREATE TABLE IF NOT EXISTS groups (
		id         TEXT PRIMARY KEY,
		payload    BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`,

	// 003: classification write-back
	`CREATE TABLE IF NOT EXISTS classifications (
		signal_key TEXT PRIMARY KEY,
		payload    BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`,
}

// runMigrations applies pending migrations.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("apply migration %d: %w", version, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %d: %w", version, err)
		}
	}
	return nil
}
