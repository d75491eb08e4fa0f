package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "create subjects",
		sql: `CREATE TABLE IF NOT EXISTS subjects (
		    id BIGSERIAL PRIMARY KEY,
		    url TEXT NOT NULL,
		    title TEXT NOT NULL DEFAULT '',
		    screenshot_path TEXT NOT NULL DEFAULT '',
		    archive_url TEXT NOT NULL DEFAULT '',
		    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	{
		version: 2,
		name:    "create jobs",
		sql: `CREATE TABLE IF NOT EXISTS jobs (
		    id BIGSERIAL PRIMARY KEY,
		    subject_id BIGINT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		    kind TEXT NOT NULL,
		    payload TEXT NOT NULL DEFAULT '',
		    status TEXT NOT NULL DEFAULT 'pending',
		    result TEXT NOT NULL DEFAULT '',
		    attempts INT NOT NULL DEFAULT 0,
		    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_pending ON jobs (created_at, id) WHERE status = 'pending';
		CREATE INDEX IF NOT EXISTS idx_jobs_subject_kind ON jobs (subject_id, kind)`,
	},
	{
		version: 3,
		name:    "subject link status",
		sql: `ALTER TABLE subjects
		    ADD COLUMN IF NOT EXISTS broken BOOLEAN NOT NULL DEFAULT false,
		    ADD COLUMN IF NOT EXISTS last_checked_at TIMESTAMPTZ`,
	},
}

// Migrate brings the schema to the current version. It runs at startup and
// is safe to call on every boot.
func Migrate(ctx context.Context, db DB, logger *zap.Logger) error {
	if _, err := db.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (
		    version INT PRIMARY KEY,
		    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_version (version) VALUES ($1)`, m.version); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
		logger.Info("applied migration", zap.Int("version", m.version), zap.String("name", m.name))
	}
	return nil
}
