package importer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// recorderSpy captures run summaries handed to RecordRun.
type recorderSpy struct {
	mu   sync.Mutex
	runs []Result
}

func (r *recorderSpy) RecordRun(ctx context.Context, res Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, res)
	return nil
}

func (r *recorderSpy) recorded() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.runs...)
}

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "icd10_tabular.xml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ============================================================================
// Service Tests
// ============================================================================

func TestServiceStartImport(t *testing.T) {
	repo := newFakeRepo()
	recorder := &recorderSpy{}
	svc := NewService(NewEngine(repo, "icd10", 0), recorder, time.Minute)

	path := writeCatalog(t, choleraCatalog)

	runID, err := svc.StartImport(context.Background(), path)
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}
	if runID == "" {
		t.Fatal("empty run ID")
	}

	res, err := svc.GetResult(runID)
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if res.Status != StatusCommitted {
		t.Errorf("Status = %v, want %v: %s", res.Status, StatusCommitted, res.Error)
	}
	if res.Created != 2 || res.Skipped != 0 {
		t.Errorf("Created/Skipped = %d/%d, want 2/0", res.Created, res.Skipped)
	}
	if res.RunID != runID {
		t.Errorf("RunID = %q, want %q", res.RunID, runID)
	}

	recorded := recorder.recorded()
	if len(recorded) != 1 || recorded[0].RunID != runID {
		t.Errorf("recorded runs = %+v, want one entry for %s", recorded, runID)
	}
}

func TestServiceStartImportMissingFile(t *testing.T) {
	svc := NewService(NewEngine(newFakeRepo(), "icd10", 0), nil, time.Minute)

	if _, err := svc.StartImport(context.Background(), filepath.Join(t.TempDir(), "absent.xml")); err == nil {
		t.Fatal("StartImport() error = nil, want not-accessible error")
	}
}

func TestServiceSubscribeProgress(t *testing.T) {
	svc := NewService(NewEngine(newFakeRepo(), "icd10", 1), nil, time.Minute)
	path := writeCatalog(t, choleraCatalog)

	runID, err := svc.StartImport(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	ch, err := svc.SubscribeProgress(runID)
	if err != nil {
		t.Fatalf("SubscribeProgress() error = %v", err)
	}

	var last Progress
	for p := range ch {
		last = p
	}
	// Channel closes after the run; last update is terminal.
	if last.Status != StatusCommitted {
		t.Errorf("last progress status = %v, want %v", last.Status, StatusCommitted)
	}
	if last.Created != 2 {
		t.Errorf("last progress created = %d, want 2", last.Created)
	}
}

func TestServiceParseFailureRun(t *testing.T) {
	recorder := &recorderSpy{}
	svc := NewService(NewEngine(newFakeRepo(), "icd10", 0), recorder, time.Minute)
	path := writeCatalog(t, `<root><chapter>`)

	runID, err := svc.StartImport(context.Background(), path)
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}

	res, err := svc.GetResult(runID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusRolledBack {
		t.Errorf("Status = %v, want %v", res.Status, StatusRolledBack)
	}
	if res.Error == "" {
		t.Error("Result.Error is empty")
	}

	// Failed runs get recorded too.
	if recorded := recorder.recorded(); len(recorded) != 1 || recorded[0].Status != StatusRolledBack {
		t.Errorf("recorded = %+v, want one rolled-back entry", recorded)
	}
}

func TestServiceUnknownRun(t *testing.T) {
	svc := NewService(NewEngine(newFakeRepo(), "icd10", 0), nil, time.Minute)

	if _, err := svc.GetProgress("nope"); err == nil {
		t.Error("GetProgress() error = nil, want not-found")
	}
	if _, err := svc.GetResult("nope"); err == nil {
		t.Error("GetResult() error = nil, want not-found")
	}
	if _, err := svc.SubscribeProgress("nope"); err == nil {
		t.Error("SubscribeProgress() error = nil, want not-found")
	}
	if err := svc.CancelRun("nope"); err == nil {
		t.Error("CancelRun() error = nil, want not-found")
	}
}

func TestServiceGetProgressAfterCompletion(t *testing.T) {
	svc := NewService(NewEngine(newFakeRepo(), "icd10", 0), nil, time.Minute)
	path := writeCatalog(t, choleraCatalog)

	runID, err := svc.StartImport(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetResult(runID); err != nil {
		t.Fatal(err)
	}

	// Run stays queryable for a while after completion.
	p, err := svc.GetProgress(runID)
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if p.Status != StatusCommitted {
		t.Errorf("progress status = %v, want %v", p.Status, StatusCommitted)
	}
	if svc.ActiveRuns() != 1 {
		t.Errorf("ActiveRuns() = %d, want 1", svc.ActiveRuns())
	}
}
