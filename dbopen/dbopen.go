// Package dbopen opens the service's SQLite database with consistent
// pragmas and optional schema setup.
//
// The cache sees concurrent writers (one goroutine per vendor), so every
// open gets WAL journaling, a generous busy timeout, and NORMAL
// synchronous mode:
//
//	foreign_keys = ON
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
//
// Usage:
//
//	import _ "modernc.org/sqlite"
//	db, err := dbopen.Open("dealradar.db", dbopen.WithSchema(cacheSchema))
//
// In tests:
//
//	db := dbopen.OpenMemory(t)
package dbopen

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

type settings struct {
	busyTimeoutMs int
	cacheSize     int
	synchronous   string
	foreignKeys   bool
	mkdirAll      bool
	schemas       []string
	ping          bool
}

// Option customises Open behaviour.
type Option func(*settings)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(s *settings) { s.busyTimeoutMs = ms } }

// WithCacheSize sets PRAGMA cache_size. 0 (default) keeps the SQLite
// default. Negative values are KiB (-64000 = 64 MB).
func WithCacheSize(pages int) Option { return func(s *settings) { s.cacheSize = pages } }

// WithSynchronous sets PRAGMA synchronous. Default: "NORMAL".
func WithSynchronous(mode string) Option { return func(s *settings) { s.synchronous = mode } }

// WithMkdirAll creates parent directories of the database path first.
func WithMkdirAll() Option { return func(s *settings) { s.mkdirAll = true } }

// WithSchema queues SQL to execute after the pragmas are applied. May be
// given multiple times; statements run in order.
func WithSchema(sql string) Option { return func(s *settings) { s.schemas = append(s.schemas, sql) } }

// WithoutForeignKeys disables PRAGMA foreign_keys.
func WithoutForeignKeys() Option { return func(s *settings) { s.foreignKeys = false } }

// WithoutPing skips the connectivity check after opening.
func WithoutPing() Option { return func(s *settings) { s.ping = false } }

// Open opens the SQLite database at path. The caller must blank-import
// the driver:
//
//	import _ "modernc.org/sqlite"
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := settings{
		busyTimeoutMs: 10_000,
		synchronous:   "NORMAL",
		foreignKeys:   true,
		ping:          true,
	}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open: %w", err)
	}

	fk := "ON"
	if !cfg.foreignKeys {
		fk = "OFF"
	}
	pragmas := []string{
		"PRAGMA foreign_keys = " + fk,
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeoutMs),
		"PRAGMA synchronous = " + cfg.synchronous,
	}
	if cfg.cacheSize != 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA cache_size = %d", cfg.cacheSize))
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: %s: %w", p, err)
		}
	}

	for _, s := range cfg.schemas {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: exec schema: %w", err)
		}
	}

	if cfg.ping {
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: ping: %w", err)
		}
	}
	return db, nil
}

// OpenMemory opens an in-memory database for tests, closed via t.Cleanup.
// MaxOpenConns is pinned to 1: each connection to ":memory:" would
// otherwise get its own private database.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
