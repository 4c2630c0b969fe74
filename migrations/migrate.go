// Package migrations applies the embedded SQL schema of the result cache.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

//go:embed *.sql
var files embed.FS

// lockKey serialises concurrent migrators (desk and CLI starting together).
const lockKey = 0x736b796e6574

const schemaTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Run applies every pending embedded migration in name order.
func Run(ctx context.Context, db *sql.DB) error {
	return run(ctx, db, files)
}

// run applies the *.sql files of fsys. Each file and its schema_migrations
// row commit in one transaction, so a failing file leaves nothing behind.
func run(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	if _, err := db.ExecContext(ctx, schemaTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	applied := 0
	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		ok, err := apply(ctx, db, version, string(body))
		if err != nil {
			return err
		}
		if ok {
			applied++
		}
	}

	log.Info().Int("applied", applied).Int("total", len(names)).Msg("Migrations up to date")
	return nil
}

// apply runs one migration unless it is already recorded. It reports whether it ran.
func apply(ctx context.Context, db *sql.DB, version, body string) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin %s: %w", version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
		return false, fmt.Errorf("lock %s: %w", version, err)
	}

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = $1`, version).Scan(&one)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}

	log.Info().Str("version", version).Msg("Running migration")
	if _, err := tx.ExecContext(ctx, body); err != nil {
		return false, fmt.Errorf("run %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
		return false, fmt.Errorf("record %s: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit %s: %w", version, err)
	}
	return true, nil
}
