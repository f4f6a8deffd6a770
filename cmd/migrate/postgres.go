package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finlog/finlog/internal/infra/postgres"
)

type postgresTarget struct {
	db *sql.DB
}

func newPostgresTarget(ctx context.Context, url string) (*postgresTarget, error) {
	db, err := postgres.Open(ctx, url, 2)
	if err != nil {
		return nil, err
	}
	return &postgresTarget{db: db}, nil
}

func (p *postgresTarget) EnsureSchemaMigrations(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			name        TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			checksum    TEXT,
			applied_by  TEXT
		)`)
	return err
}

func (p *postgresTarget) Applied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT version, name, applied_at, COALESCE(checksum, ''), COALESCE(applied_by, '')
		FROM schema_migrations
		ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var am AppliedMigration
		if err := rows.Scan(&am.Version, &am.Name, &am.AppliedAt, &am.Checksum, &am.AppliedBy); err != nil {
			return nil, fmt.Errorf("scanning applied migration: %w", err)
		}
		applied = append(applied, am)
	}
	return applied, rows.Err()
}

// Apply runs the migration and its bookkeeping row in one transaction.
func (p *postgresTarget) Apply(ctx context.Context, m Migration, appliedBy string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("executing: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, checksum, applied_by) VALUES ($1, $2, $3, $4)`,
		m.Version, m.Name, m.Checksum, appliedBy,
	); err != nil {
		return fmt.Errorf("recording: %w", err)
	}
	return tx.Commit()
}

func (p *postgresTarget) Close() error {
	return p.db.Close()
}
