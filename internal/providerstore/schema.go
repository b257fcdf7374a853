package providerstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

// ErrSchemaMismatch reports a database written by a newer release.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// cacheTables are dropped when an older layout is rebuilt. Every row in them
// can be fetched again from TMDB.
var cacheTables = []string{"availability", "titles", "schema_version"}

// initSchema creates the schema on a fresh file and rebuilds it when the file
// predates schemaVersion. Files from a newer release are refused.
func (s *Store) initSchema(ctx context.Context) error {
	version, existing, err := s.storedVersion(ctx)
	if err != nil {
		return err
	}
	switch {
	case !existing:
		return s.rebuildSchema(ctx, false)
	case version == schemaVersion:
		return nil
	case version > schemaVersion:
		return fmt.Errorf("%w: %s has version %d, this build supports %d",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	default:
		return s.rebuildSchema(ctx, true)
	}
}

// storedVersion reports existing=false for a file without a version table.
// An empty version table counts as version 0.
func (s *Store) storedVersion(ctx context.Context) (version int, existing bool, err error) {
	var tables int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`,
	).Scan(&tables); err != nil {
		return 0, false, fmt.Errorf("inspect schema: %w", err)
	}
	if tables == 0 {
		return 0, false, nil
	}
	err = s.db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, true, nil
	}
	if err != nil {
		return 0, true, fmt.Errorf("read schema version: %w", err)
	}
	return version, true, nil
}

func (s *Store) rebuildSchema(ctx context.Context, dropExisting bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if dropExisting {
		for _, table := range cacheTables {
			if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
				return fmt.Errorf("drop %s: %w", table, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
		return fmt.Errorf("reset schema version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}
