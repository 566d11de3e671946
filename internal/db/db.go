// Package db opens the SQLite file that backs the delivery ledger.
package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Open opens the SQLite database at dbPath, creating its directory when
// needed, then applies the pragmas the ledger relies on and checks the
// connection.
func Open(ctx context.Context, dbPath string) (*sql.DB, error) {
	if !inMemory(dbPath) {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, eris.Wrapf(err, "create database directory %s", dir)
			}
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, eris.Wrap(err, "open sqlite database")
	}

	// Pragmas are per connection; keep exactly one.
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, `
		PRAGMA journal_mode = WAL;
		PRAGMA foreign_keys = ON;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "set sqlite pragmas")
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "ping sqlite database")
	}

	return conn, nil
}

func inMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.HasPrefix(dbPath, "file::memory:")
}
