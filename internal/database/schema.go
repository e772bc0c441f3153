package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements bootstrap the diagnosis table and the run history
// table. Idempotent; safe to run on every startup.
//
// The unique index on (code, icd_version) is the storage-level backstop
// for the engine's uniqueness invariant: even a racing writer cannot
// introduce a duplicate code within one coding-standard family.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS his_icd_diagnosis (
		id          BIGSERIAL PRIMARY KEY,
		code        TEXT NOT NULL,
		description TEXT NOT NULL,
		category    TEXT NOT NULL DEFAULT '',
		icd_version TEXT NOT NULL,
		active      BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS his_icd_diagnosis_code_version_idx
		ON his_icd_diagnosis (code, icd_version)`,

	`CREATE TABLE IF NOT EXISTS icd_import_runs (
		id          UUID PRIMARY KEY,
		document    TEXT NOT NULL,
		status      TEXT NOT NULL,
		created     INTEGER NOT NULL DEFAULT 0,
		skipped     INTEGER NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		finished_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS icd_import_runs_finished_at_idx
		ON icd_import_runs (finished_at DESC)`,
}

// EnsureSchema creates the diagnosis and run history tables if missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
