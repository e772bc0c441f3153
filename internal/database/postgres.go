// Package database implements the diagnosis repository over PostgreSQL
// using pgx. One pgx transaction per document run is the staging buffer:
// inserts inside the open transaction are visible to same-run lookups but
// not durable until commit.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Makondoo-Inc/odoo-deployments/internal/importer"
)

// Repository provides diagnosis storage backed by a pgx connection pool.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a Repository on top of an existing pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// BeginRun opens the transaction scope for one document run.
func (r *Repository) BeginRun(ctx context.Context) (importer.RunScope, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &runScope{tx: tx}, nil
}

// runScope implements importer.RunScope over one pgx transaction.
type runScope struct {
	tx pgx.Tx
}

const findDiagnosisSQL = `
SELECT code, description, category, icd_version, active
FROM his_icd_diagnosis
WHERE code = $1 AND icd_version = $2
LIMIT 1`

func (s *runScope) Find(ctx context.Context, code, versionTag string) (*importer.Diagnosis, error) {
	var d importer.Diagnosis
	err := s.tx.QueryRow(ctx, findDiagnosisSQL, code, versionTag).Scan(
		&d.Code, &d.Description, &d.Category, &d.VersionTag, &d.Active,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find diagnosis %s: %w", code, err)
	}
	return &d, nil
}

const insertDiagnosisSQL = `
INSERT INTO his_icd_diagnosis (code, description, category, icd_version, active)
VALUES ($1, $2, $3, $4, $5)`

func (s *runScope) StageCreate(ctx context.Context, d importer.Diagnosis) error {
	_, err := s.tx.Exec(ctx, insertDiagnosisSQL,
		d.Code, d.Description, d.Category, d.VersionTag, d.Active,
	)
	if err != nil {
		return fmt.Errorf("stage diagnosis %s: %w", d.Code, err)
	}
	return nil
}

func (s *runScope) Commit(ctx context.Context) error {
	if err := s.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func (s *runScope) Rollback(ctx context.Context) error {
	err := s.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback run: %w", err)
	}
	return nil
}
