package store

import "fmt"

// currentSchemaVersion is the latest schema version.
const currentSchemaVersion = 1

// Migrate runs forward migrations to bring the database schema up to date.
func (db *DB) Migrate() error {
	// Create the schema_version table if it does not exist.
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	version := 0
	row := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&version); err != nil {
		// No rows means version 0 (fresh database).
		version = 0
	}

	if version < 1 {
		if err := db.migrateV1(); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return nil
}

// migrateV1 creates all initial tables and indexes.
func (db *DB) migrateV1() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS optimization_history (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			changed_at TEXT NOT NULL,
			from_level TEXT NOT NULL,
			to_level   TEXT NOT NULL,
			reason     TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS scheduling_history (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			run_at             TEXT NOT NULL,
			user_id            TEXT NOT NULL,
			strategy           TEXT NOT NULL,
			total_reminders    INTEGER NOT NULL,
			optimized          INTEGER NOT NULL,
			battery_reduction  REAL NOT NULL,
			adherence_impact   REAL NOT NULL,
			avg_delay_minutes  REAL NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sched_history_user
			ON scheduling_history(user_id, run_at)`,

		`CREATE INDEX IF NOT EXISTS idx_opt_history_time
			ON optimization_history(changed_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration statement: %w", err)
		}
	}

	// Record the schema version.
	if _, err := db.conn.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	if _, err := db.conn.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
		return err
	}

	return nil
}
