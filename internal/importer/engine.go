package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Makondoo-Inc/odoo-deployments/internal/catalog"
	"github.com/google/uuid"
)

// contextCheckInterval is how many entries to process between context
// cancellation checks.
const contextCheckInterval = 100

// Engine runs the import pipeline over catalog documents: normalization,
// create-vs-skip deduplication, and one atomic commit per document.
type Engine struct {
	repo       Repository
	versionTag string
	batchSize  int
}

// NewEngine creates an Engine bound to a repository. Zero values fall back
// to VersionTagICD10 and DefaultBatchSize.
func NewEngine(repo Repository, versionTag string, batchSize int) *Engine {
	if versionTag == "" {
		versionTag = VersionTagICD10
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Engine{
		repo:       repo,
		versionTag: versionTag,
		batchSize:  batchSize,
	}
}

// VersionTag returns the coding-standard family this engine imports into.
func (e *Engine) VersionTag() string { return e.versionTag }

// ImportFile parses and imports one catalog document.
//
// The returned Result always describes the run's terminal state. The error
// is nil for a committed run, a *ParseError when the document could not be
// parsed (the repository is never touched), or a *RepositoryError when
// staging or commit failed (every staged create was rolled back).
func (e *Engine) ImportFile(ctx context.Context, runID, path string, notify ProgressFunc) (*Result, error) {
	start := time.Now()

	cat, err := catalog.ParseFile(path)
	if err != nil {
		perr := &ParseError{Document: path, Err: err}
		res := &Result{
			RunID:    runID,
			Document: path,
			Status:   StatusRolledBack,
			Error:    perr.Error(),
			Duration: time.Since(start),
		}
		if notify != nil {
			notify(progressFromResult(res, ""))
		}
		return res, perr
	}

	return e.importCatalog(ctx, runID, cat, notify, start)
}

// ImportCatalog imports an already-parsed catalog tree. Used directly by
// tests and by callers that parse from a stream.
func (e *Engine) ImportCatalog(ctx context.Context, runID string, cat *catalog.Catalog, notify ProgressFunc) (*Result, error) {
	return e.importCatalog(ctx, runID, cat, notify, time.Now())
}

// ImportAll imports the given documents sequentially, each with its own
// independent run and transaction scope. A failed document never affects
// an already-committed one; processing continues with the next document.
func (e *Engine) ImportAll(ctx context.Context, paths []string, notify ProgressFunc) []*Result {
	results := make([]*Result, 0, len(paths))
	for _, path := range paths {
		res, err := e.ImportFile(ctx, uuid.New().String(), path, notify)
		if err != nil {
			slog.Error("import failed",
				"document", path,
				"run_id", res.RunID,
				"error", err,
			)
		}
		results = append(results, res)
	}
	return results
}

func (e *Engine) importCatalog(ctx context.Context, runID string, cat *catalog.Catalog, notify ProgressFunc, start time.Time) (*Result, error) {
	doc := cat.Path
	if doc == "" {
		doc = "catalog"
	}

	scope, err := e.repo.BeginRun(ctx)
	if err != nil {
		rerr := &RepositoryError{Document: doc, Err: fmt.Errorf("begin run: %w", err)}
		res := &Result{
			RunID:    runID,
			Document: doc,
			Status:   StatusRolledBack,
			Error:    rerr.Error(),
			Duration: time.Since(start),
		}
		if notify != nil {
			notify(progressFromResult(res, ""))
		}
		return res, rerr
	}

	var (
		seen, created, skipped int
		category               string
	)

	// staged tracks codes created earlier in this run, so a code that
	// appears twice in one document skips on its second occurrence just
	// like a pre-existing duplicate.
	staged := make(map[string]struct{})

	fail := func(cause error) (*Result, error) {
		// Rollback must run even when ctx itself is the failure.
		_ = scope.Rollback(context.WithoutCancel(ctx))
		rerr := &RepositoryError{Document: doc, Err: cause}
		res := &Result{
			RunID:    runID,
			Document: doc,
			Status:   StatusRolledBack,
			Created:  created,
			Skipped:  skipped,
			Error:    rerr.Error(),
			Duration: time.Since(start),
		}
		if notify != nil {
			notify(progressFromResult(res, category))
		}
		return res, rerr
	}

	for entry := range cat.Entries() {
		if seen%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
		}
		seen++
		category = entry.Category

		if _, ok := staged[entry.Code]; ok {
			skipped++
			continue
		}

		existing, err := scope.Find(ctx, entry.Code, e.versionTag)
		if err != nil {
			return fail(fmt.Errorf("find %s: %w", entry.Code, err))
		}
		if existing != nil {
			skipped++
			continue
		}

		rec := Diagnosis{
			Code:        entry.Code,
			Description: entry.Description,
			Category:    entry.Category,
			VersionTag:  e.versionTag,
			Active:      true,
		}
		if err := scope.StageCreate(ctx, rec); err != nil {
			return fail(fmt.Errorf("stage %s: %w", entry.Code, err))
		}
		staged[entry.Code] = struct{}{}
		created++

		if created%e.batchSize == 0 && notify != nil {
			notify(Progress{
				RunID:    runID,
				Document: doc,
				Status:   StatusInProgress,
				Category: category,
				Seen:     seen,
				Created:  created,
				Skipped:  skipped,
			})
		}
	}

	if err := scope.Commit(ctx); err != nil {
		return fail(fmt.Errorf("commit: %w", err))
	}

	res := &Result{
		RunID:    runID,
		Document: doc,
		Status:   StatusCommitted,
		Created:  created,
		Skipped:  skipped,
		Duration: time.Since(start),
	}
	if notify != nil {
		notify(progressFromResult(res, category))
	}

	slog.Info("catalog committed",
		"run_id", runID,
		"document", doc,
		"created", created,
		"skipped", skipped,
		"duration_ms", res.Duration.Milliseconds(),
	)

	return res, nil
}

// progressFromResult builds the terminal progress notification for a run.
func progressFromResult(res *Result, category string) Progress {
	return Progress{
		RunID:    res.RunID,
		Document: res.Document,
		Status:   res.Status,
		Category: category,
		Seen:     res.Created + res.Skipped,
		Created:  res.Created,
		Skipped:  res.Skipped,
		Error:    res.Error,
	}
}
