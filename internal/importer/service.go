package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRunTimeout is the maximum duration for a single document run.
var DefaultRunTimeout = 10 * time.Minute

// runRetention is how long a finished run stays queryable before cleanup.
const runRetention = 5 * time.Minute

// Service runs imports in the background and exposes their progress to
// subscribers. It wraps the Engine with a run registry so HTTP callers can
// start a run, stream its progress, and fetch its result later.
type Service struct {
	engine   *Engine
	recorder RunRecorder // optional, may be nil
	timeout  time.Duration

	mu   sync.RWMutex
	runs map[string]*activeRun
}

type activeRun struct {
	ID       string
	Document string
	Cancel   context.CancelFunc
	Result   *Result
	Done     chan struct{}

	ListenerMu sync.Mutex
	Progress   Progress
	Listeners  []chan Progress
	// finished is set under ListenerMu when listeners are closed, so a
	// late subscriber gets a closed channel instead of one nobody owns.
	finished bool
}

// NewService creates a Service around an engine. recorder may be nil when
// run history is not persisted. timeout <= 0 falls back to
// DefaultRunTimeout.
func NewService(engine *Engine, recorder RunRecorder, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Service{
		engine:   engine,
		recorder: recorder,
		timeout:  timeout,
		runs:     make(map[string]*activeRun),
	}
}

// StartImport begins an asynchronous import of one catalog document.
// Returns the run ID immediately. Use SubscribeProgress to get updates.
func (s *Service) StartImport(ctx context.Context, path string) (string, error) {
	// Fail fast on unreadable paths; parse errors surface via the run.
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("catalog not accessible: %w", err)
	}

	runID := uuid.New().String()

	// Runs outlive the triggering request.
	runCtx, cancel := context.WithTimeout(context.Background(), s.timeout)

	run := &activeRun{
		ID:       runID,
		Document: path,
		Cancel:   cancel,
		Progress: Progress{
			RunID:    runID,
			Document: path,
			Status:   StatusInProgress,
		},
		Done:      make(chan struct{}),
		Listeners: make([]chan Progress, 0),
	}

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	// Process in background.
	go func() {
		defer cancel()
		s.process(runCtx, run)
	}()

	return runID, nil
}

// process executes the run and finalizes the registry entry. Panic
// recovery ensures a broken catalog can never wedge the run registry.
func (s *Service) process(ctx context.Context, run *activeRun) {
	defer func() {
		run.closeListeners()
		close(run.Done)
		s.cleanup(run.ID, runRetention)
	}()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in import run",
				"run_id", run.ID,
				"document", run.Document,
				"panic", r,
			)
			run.Result = &Result{
				RunID:    run.ID,
				Document: run.Document,
				Status:   StatusRolledBack,
				Error:    fmt.Sprintf("internal error: %v", r),
			}
			run.setProgress(progressFromResult(run.Result, ""))
		}
	}()

	res, err := s.engine.ImportFile(ctx, run.ID, run.Document, run.setProgress)
	if err != nil {
		slog.Error("import run failed",
			"run_id", run.ID,
			"document", run.Document,
			"error", err,
		)
	}
	run.Result = res

	if s.recorder != nil {
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := s.recorder.RecordRun(recCtx, *res); err != nil {
			slog.Warn("record run history", "run_id", run.ID, "error", err)
		}
	}
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the run completes.
func (s *Service) SubscribeProgress(runID string) (<-chan Progress, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}

	ch := make(chan Progress, 10)

	run.ListenerMu.Lock()
	// Send current progress immediately
	ch <- run.Progress
	if run.finished {
		close(ch)
	} else {
		run.Listeners = append(run.Listeners, ch)
	}
	run.ListenerMu.Unlock()

	return ch, nil
}

// GetProgress returns the current progress without blocking.
func (s *Service) GetProgress(runID string) (Progress, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return Progress{}, fmt.Errorf("run not found: %s", runID)
	}

	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()
	return run.Progress, nil
}

// GetResult returns the result of a completed run.
// Blocks until the run completes if still in progress.
func (s *Service) GetResult(runID string) (*Result, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}

	<-run.Done

	return run.Result, nil
}

// CancelRun cancels an in-progress run. The run rolls back and reaches
// RolledBack like any other repository failure.
func (s *Service) CancelRun(runID string) error {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}

	run.Cancel()
	return nil
}

// ActiveRuns returns the number of runs currently tracked.
func (s *Service) ActiveRuns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// cleanup removes a finished run from the registry after a delay, keeping
// it queryable long enough for late result fetches.
func (s *Service) cleanup(runID string, after time.Duration) {
	time.AfterFunc(after, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}

// setProgress records the latest progress and fans it out to listeners.
// Slow listeners drop intermediate updates rather than blocking the run.
func (r *activeRun) setProgress(p Progress) {
	r.ListenerMu.Lock()
	defer r.ListenerMu.Unlock()

	r.Progress = p
	for _, ch := range r.Listeners {
		select {
		case ch <- p:
		default:
		}
	}
}

// closeListeners closes all listener channels after the final update.
func (r *activeRun) closeListeners() {
	r.ListenerMu.Lock()
	defer r.ListenerMu.Unlock()

	r.finished = true
	for _, ch := range r.Listeners {
		close(ch)
	}
	r.Listeners = nil
}
