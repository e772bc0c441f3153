package importer

import "context"

// Repository provides access to the diagnosis store. The engine is
// storage-technology-agnostic: it depends only on this capability.
type Repository interface {
	// BeginRun opens the transaction scope for one document run. The
	// scope is held exclusively for the duration of the run and released
	// by Commit or Rollback before the next document starts.
	BeginRun(ctx context.Context) (RunScope, error)
}

// RunScope is one document's transaction scope over the diagnosis store.
//
// StageCreate buffers a record without making it durable; Commit makes
// every staged create of the run durable atomically; Rollback discards
// them all. Implementations must guarantee that Find observes records
// staged earlier in the same scope.
type RunScope interface {
	// Find returns the record with the given code and version tag, or
	// nil when absent.
	Find(ctx context.Context, code, versionTag string) (*Diagnosis, error)

	// StageCreate buffers a new record for this run.
	StageCreate(ctx context.Context, d Diagnosis) error

	// Commit makes every staged create durable. The scope is closed
	// afterward regardless of outcome.
	Commit(ctx context.Context) error

	// Rollback discards every staged create. Safe to call after Commit;
	// it is a no-op on a closed scope.
	Rollback(ctx context.Context) error
}

// RunRecorder persists a summary of a finished run for operator history.
// Recording happens outside the run's transaction scope: a failed history
// write never affects a committed run.
type RunRecorder interface {
	RecordRun(ctx context.Context, res Result) error
}
