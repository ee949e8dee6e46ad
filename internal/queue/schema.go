package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var baseSchema string

// migrations[i] moves a database from version i to i+1. Append new steps;
// never edit an existing one.
var migrations = []string{
	baseSchema,
}

func currentSchemaVersion() int { return len(migrations) }

// ErrSchemaMismatch means the database was written by a newer comicdl.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) migrate(ctx context.Context) error {
	version, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if version > currentSchemaVersion() {
		return fmt.Errorf("%w: database %s has version %d, this build understands up to %d",
			ErrSchemaMismatch, s.path, version, currentSchemaVersion())
	}
	for next := version; next < currentSchemaVersion(); next++ {
		if err := s.applyMigration(ctx, next); err != nil {
			return err
		}
	}
	return nil
}

// schemaVersion returns 0 for a fresh database.
func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var present int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'",
	).Scan(&present); err != nil {
		return 0, fmt.Errorf("check schema_version table: %w", err)
	}
	if present == 0 {
		return 0, nil
	}
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) applyMigration(ctx context.Context, from int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", from+1, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migrations[from]); err != nil {
		return fmt.Errorf("apply migration %d: %w", from+1, err)
	}
	if from == 0 {
		_, err = tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", from+1)
	} else {
		_, err = tx.ExecContext(ctx, "UPDATE schema_version SET version = ?", from+1)
	}
	if err != nil {
		return fmt.Errorf("record schema version %d: %w", from+1, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", from+1, err)
	}
	return nil
}
