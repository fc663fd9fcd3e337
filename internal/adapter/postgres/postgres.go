// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
}

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := New(s)
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// New wraps an already opened connection pool without migrating it.
func New(s *sql.DB) *DB {
	return &DB{sql: s}
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping checks the connection within ctx.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS time_slots (
			id BIGSERIAL PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			ref_minutes INTEGER NOT NULL CHECK (ref_minutes BETWEEN 0 AND 1439),
			tracking_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			reminder_id TEXT,
			reminder_message TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		"CREATE TABLE IF NOT EXISTS app_settings (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at TIMESTAMPTZ NOT NULL);",
		`CREATE TABLE IF NOT EXISTS health_samples (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL CHECK (kind IN ('bp','hr')),
			systolic DOUBLE PRECISION,
			diastolic DOUBLE PRECISION,
			bpm DOUBLE PRECISION,
			taken_at TIMESTAMPTZ NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_health_samples_taken_at ON health_samples(taken_at);",
		`CREATE TABLE IF NOT EXISTS health_sample_changes (
			seq BIGSERIAL PRIMARY KEY,
			sample_id TEXT NOT NULL,
			op TEXT NOT NULL CHECK (op IN ('add','delete')),
			created_at TIMESTAMPTZ NOT NULL
		);`,
		"CREATE TABLE IF NOT EXISTS users (id BIGSERIAL PRIMARY KEY, username TEXT UNIQUE NOT NULL, password_hash TEXT NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE TABLE IF NOT EXISTS sessions (token TEXT PRIMARY KEY, user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE, user_agent TEXT NOT NULL DEFAULT '', expires_at TIMESTAMPTZ NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);",
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is PostgreSQL error 23505.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
