// Package sqlite implements the book and entry stores on an embedded SQLite
// database (modernc.org/sqlite, no cgo). It backs the offline CLI import and
// single-node deployments with database.driver = sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/heartmarshall/lexiflow-backend/migrations"
)

var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// DB is an opened SQLite database. All access goes through one connection,
// so transactions and pragmas see a single consistent session.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the database file at path, applies the
// pragmas and, when migrate is set, the embedded migrations.
func Open(ctx context.Context, path string, migrate bool) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	if migrate {
		if _, err := migrations.Up(ctx, db, migrations.DriverSQLite); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &DB{DB: db}, nil
}

// Ping satisfies the readiness checker.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}
