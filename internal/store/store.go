// Package store opens the relational entity store and applies the schema on
// startup. Postgres (pgx) backs production, sqlite (modernc, cgo-free)
// backs local runs and tests; both sit behind database/sql.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // register the sqlite driver
)

//go:embed schema.sql
var schemaSQL string

// Drivers accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds connection settings for the entity store.
type Config struct {
	Driver string
	DSN    string
}

// Store wraps the sql.DB connection pool for the entity store.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the configured database and applies the schema.
func Open(cfg Config) (*Store, error) {
	var driverName string
	switch cfg.Driver {
	case DriverPostgres:
		driverName = "pgx"
	case DriverSQLite:
		driverName = "sqlite"
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	s := &Store{db: db, driver: cfg.Driver}

	if cfg.Driver == DriverSQLite {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
		// The sqlite driver serializes writes; a second writer connection
		// would only produce SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	if err := s.applySchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// DB exposes the underlying pool for the repositories.
func (s *Store) DB() *sql.DB { return s.db }

// Driver returns the configured driver name.
func (s *Store) Driver() string { return s.driver }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", s.driver, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// WaitForReady polls the database until it answers or the timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		pingCtx, cancel := context.WithTimeout(ctx, time.Second)
		lastErr = s.db.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("database not ready after %s: %w", timeout, lastErr)
}

// applySchema executes the embedded DDL statement by statement. All
// statements use IF NOT EXISTS, so re-running on an existing database is a
// no-op.
func (s *Store) applySchema(ctx context.Context) error {
	for _, stmt := range splitStatements(schemaSQL) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// splitStatements cuts the schema into individual statements on ";" at end
// of statement. The schema contains no string literals with semicolons.
func splitStatements(ddl string) []string {
	parts := strings.Split(ddl, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(stripComments(p)) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func stripComments(stmt string) string {
	var b strings.Builder
	for _, line := range strings.Split(stmt, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
