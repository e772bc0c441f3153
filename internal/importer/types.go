// Package importer provides the ICD-10 catalog import engine: normalization
// of catalog entries into canonical diagnosis records, create-vs-skip
// deduplication against the repository, and transactional per-document
// commits with progress reporting. This package has no storage or HTTP
// dependencies and can be driven by any frontend.
package importer

import (
	"fmt"
	"time"
)

// VersionTagICD10 identifies the ICD-10 coding-standard family. Code
// uniqueness in the repository is scoped to one version tag.
const VersionTagICD10 = "icd10"

// DefaultBatchSize is the number of staged creates between progress
// notifications.
const DefaultBatchSize = 100

// Diagnosis is the canonical record handed to the repository. Instances
// are transient value objects; the engine does not retain them after
// staging.
type Diagnosis struct {
	Code        string
	Description string
	Category    string
	VersionTag  string
	Active      bool
}

// RunStatus is the lifecycle state of one document run. Committed and
// RolledBack are terminal; a rolled-back run is never resumed, the caller
// must re-invoke the whole pipeline.
type RunStatus string

const (
	StatusInProgress RunStatus = "in_progress"
	StatusCommitted  RunStatus = "committed"
	StatusRolledBack RunStatus = "rolled_back"
)

// Progress is one notification emitted during a document run.
type Progress struct {
	RunID    string    `json:"run_id"`
	Document string    `json:"document"`
	Status   RunStatus `json:"status"`

	// Category is the chapter heading currently being processed.
	Category string `json:"category"`

	Seen    int `json:"seen"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`

	// Error is non-empty when Status is StatusRolledBack.
	Error string `json:"error,omitempty"`
}

// Result is the terminal outcome of one document run.
type Result struct {
	RunID    string        `json:"run_id"`
	Document string        `json:"document"`
	Status   RunStatus     `json:"status"`
	Created  int           `json:"created"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`

	// Error is non-empty when the run rolled back.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the run ended rolled back.
func (r *Result) Failed() bool {
	return r.Status == StatusRolledBack
}

// ParseError reports a document that could not be read as a well-formed
// catalog. The run for that document never reaches the repository.
type ParseError struct {
	Document string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Document, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RepositoryError reports a repository failure during staging or commit.
// Every staged create of the run is rolled back.
type RepositoryError struct {
	Document string
	Err      error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository failure importing %s: %v", e.Document, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// ProgressFunc receives ordered progress notifications for a run.
// A nil ProgressFunc disables notifications.
type ProgressFunc func(Progress)
