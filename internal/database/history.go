package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Makondoo-Inc/odoo-deployments/internal/importer"
)

// RunRecord is one row of the import run history.
type RunRecord struct {
	ID         string             `json:"id"`
	Document   string             `json:"document"`
	Status     importer.RunStatus `json:"status"`
	Created    int                `json:"created"`
	Skipped    int                `json:"skipped"`
	Error      string             `json:"error,omitempty"`
	DurationMs int                `json:"duration_ms"`
	FinishedAt time.Time          `json:"finished_at"`
}

const insertRunSQL = `
INSERT INTO icd_import_runs (id, document, status, created, skipped, error, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// RecordRun persists the summary of a finished run. Runs its own statement
// outside any run transaction: history of a rolled-back run survives the
// rollback.
func (r *Repository) RecordRun(ctx context.Context, res importer.Result) error {
	var id pgtype.UUID
	if err := id.Scan(res.RunID); err != nil {
		return fmt.Errorf("invalid run ID: %w", err)
	}

	_, err := r.pool.Exec(ctx, insertRunSQL,
		id, res.Document, string(res.Status),
		res.Created, res.Skipped, res.Error,
		res.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

const runHistorySQL = `
SELECT id, document, status, created, skipped, error, duration_ms, finished_at
FROM icd_import_runs
ORDER BY finished_at DESC
LIMIT $1`

// RunHistory returns the most recent runs, newest first.
func (r *Repository) RunHistory(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, runHistorySQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query run history: %w", err)
	}
	defer rows.Close()

	records := make([]RunRecord, 0, limit)
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.Document, &rec.Status,
			&rec.Created, &rec.Skipped, &rec.Error,
			&rec.DurationMs, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run history: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run history rows: %w", err)
	}

	return records, nil
}

// DiagnosisCount returns the number of stored records for a version tag.
func (r *Repository) DiagnosisCount(ctx context.Context, versionTag string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM his_icd_diagnosis WHERE icd_version = $1`,
		versionTag,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count diagnoses: %w", err)
	}
	return count, nil
}
