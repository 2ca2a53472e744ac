// Package db is the bot's local sqlite store: remembered guest contacts, the
// booking journal, blocked users and managers.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("not found")

// DB wraps sql.DB for the bot.
type DB struct {
	*sql.DB
	path string
}

// NewDB opens database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{DB: db, path: path}, nil
}

// Path of the database file.
func (db *DB) Path() string { return db.path }

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS guest_contacts (
			telegram_id INTEGER PRIMARY KEY,
			first_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS booking_journal (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_id INTEGER NOT NULL,
			appointment_id TEXT NOT NULL,
			style_name TEXT NOT NULL DEFAULT '',
			start_time DATETIME NOT NULL,
			duration_minutes INTEGER NOT NULL,
			contact_email TEXT NOT NULL DEFAULT '',
			contact_phone TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'booked',
			reminder_sent BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS blocked_users (
			user_id INTEGER PRIMARY KEY,
			blocked_at DATETIME NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			blocked_by INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS managers (
			user_id INTEGER PRIMARY KEY,
			chat_id INTEGER NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			added_at DATETIME NOT NULL,
			added_by INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_journal_appointment ON booking_journal(appointment_id)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_start ON booking_journal(start_time, status)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_user ON booking_journal(telegram_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
