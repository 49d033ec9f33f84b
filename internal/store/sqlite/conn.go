package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) a SQLite database at the given path and enables WAL
// journal mode. The URI parameters improve concurrency for the read-heavy
// scheduler loops sharing the file with the API service. Transactions start
// immediate: a deferred write transaction that upgrades its read lock can
// deadlock against a concurrent writer, which busy_timeout cannot resolve,
// whereas immediate writers queue on busy_timeout and serialize cleanly.
func Open(path string) (*sql.DB, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates core tables if they do not exist.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            user_id TEXT PRIMARY KEY,
            email TEXT NOT NULL UNIQUE,
            display_name TEXT,
            time_zone TEXT NOT NULL,
            push_token TEXT,
            creation_time TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS medications (
            medication_id TEXT PRIMARY KEY,
            owner_id TEXT NOT NULL,
            name TEXT NOT NULL,
            dosage TEXT NOT NULL DEFAULT '',
            frequency TEXT NOT NULL,
            times TEXT NOT NULL,
            start_date TEXT NOT NULL,
            end_date TEXT,
            notes TEXT,
            creation_time TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_medications_owner ON medications(owner_id);`,
		`CREATE TABLE IF NOT EXISTS dose_records (
            medication_id TEXT NOT NULL,
            dose_date TEXT NOT NULL,
            dose_index INTEGER NOT NULL,
            scheduled_time TEXT NOT NULL,
            taken BOOLEAN NOT NULL DEFAULT 0,
            missed BOOLEAN NOT NULL DEFAULT 0,
            taken_at TIMESTAMP,
            PRIMARY KEY(medication_id, dose_date, dose_index)
        );`,
		`CREATE TABLE IF NOT EXISTS reminders (
            reminder_id TEXT PRIMARY KEY,
            owner_id TEXT NOT NULL,
            medication_id TEXT NOT NULL,
            dose_index INTEGER NOT NULL,
            reminder_time TEXT NOT NULL,
            anchor_date TEXT NOT NULL,
            rtype TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            last_fired_on TEXT,
            creation_time TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_owner ON reminders(owner_id);`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_slot ON reminders(medication_id, dose_index);`,
		// One daily reminder per slot, one single per slot and date. The
		// database is the arbiter for concurrent upserts against one slot.
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_reminders_daily_slot
            ON reminders(medication_id, dose_index) WHERE rtype='daily';`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_reminders_single_slot
            ON reminders(medication_id, dose_index, anchor_date) WHERE rtype='single';`,
		`CREATE TABLE IF NOT EXISTS outbox (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            op TEXT NOT NULL,
            aggregate_id TEXT NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            attempt_count INTEGER NOT NULL DEFAULT 0,
            next_attempt_at TIMESTAMP NOT NULL,
            creation_time TIMESTAMP NOT NULL,
            update_time TIMESTAMP
        );`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
