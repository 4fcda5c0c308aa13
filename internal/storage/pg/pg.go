// Package pg implements the Metadata Store (component B) against the host
// PostgreSQL database.
//
// It follows the teacher's "Public/Private Method" pattern: public methods
// manage transactions (begin/commit/rollback) and delegate to private
// methods that accept a Querier, keeping the core logic transaction-agnostic
// and testable against either *sql.DB or *sql.Tx.
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // registers the "postgres" driver
)

// Querier abstracts database operations so the same private methods run
// against a plain connection pool or inside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Storage is the Metadata Store's persistence layer.
type Storage struct {
	db *sql.DB
}

// New connects to the host database, verifies the connection, and applies
// the embedded migrations.
func New(ctx context.Context, databaseURL string) (*Storage, error) {
	db, err := Connect(databaseURL)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Storage{db: db}, nil
}

// Connect opens and verifies a connection pool to the host database, tuned
// for the gateway's admission-pipeline workload.
func Connect(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// DB exposes the underlying pool for components (the Connection Provider)
// that need to share it.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// Ping backs the readiness probe (httpapi's Ready handler).
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Cleanup closes the database connection pool.
func (s *Storage) Cleanup() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error or panic path (the deferred Rollback is a no-op once
// Commit has succeeded).
func (s *Storage) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
