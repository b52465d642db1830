// Package audit persists the per-request audit trail. Records are
// append-only and, by the shape of domain.AuditRecord, can never contain
// SQL text, credentials, or row contents.
package audit

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// SQLite DSN parameters for production hardening.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
)

// OpenSQLite opens the audit database with WAL journaling and a single
// writer connection, and runs pending migrations.
func OpenSQLite(path string) (*sql.DB, error) {
	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_txlock", "immediate")

	db, err := sql.Open("sqlite3", path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// runMigrations executes all pending goose migrations.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
