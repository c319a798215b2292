package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// OpenOptions configures the database connection pool.
type OpenOptions struct {
	Driver          string // sqlite or postgres
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open opens a database connection for the given driver and DSN.
func Open(opts OpenOptions) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch opts.Driver {
	case "sqlite":
		if dir := filepath.Dir(opts.DSN); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite3", opts.DSN+"?_busy_timeout=5000&_journal_mode=WAL")
	case "postgres":
		db, err = sql.Open("postgres", opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		size_bytes BIGINT NOT NULL DEFAULT 0,
		pages INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		case_id TEXT,
		status TEXT NOT NULL,
		error TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_uploads_case_id ON uploads (case_id)`,
	`CREATE INDEX IF NOT EXISTS idx_uploads_status ON uploads (status)`,
	`CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		upload_id TEXT NOT NULL REFERENCES uploads(id),
		idx INTEGER NOT NULL,
		text TEXT NOT NULL,
		token_count INTEGER NOT NULL,
		page_start INTEGER NOT NULL DEFAULT 0,
		page_end INTEGER NOT NULL DEFAULT 0,
		UNIQUE (upload_id, idx)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_upload_id ON chunks (upload_id)`,
	`CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		upload_id TEXT NOT NULL REFERENCES uploads(id),
		status TEXT NOT NULL,
		result_json TEXT,
		error TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_upload_id ON analyses (upload_id)`,
}

// Migrate applies the schema. Statements are idempotent, so repeated runs
// are safe.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}
