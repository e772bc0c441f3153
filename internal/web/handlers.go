package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Makondoo-Inc/odoo-deployments/internal/catalog"
	"github.com/Makondoo-Inc/odoo-deployments/internal/logging"
)

// startImportRequest is the body for POST /api/imports.
type startImportRequest struct {
	Path string `json:"path"`
}

// handleStartImport triggers a background import of one catalog document.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	var req startImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "missing catalog path")
		return
	}

	runID, err := s.service.StartImport(r.Context(), req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logging.WithFields(r.Context(), "run_id", runID, "document", req.Path).
		Info("import run started")

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"run_id": runID})
}

// handleRunStatus returns the current progress snapshot without blocking.
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "missing run ID")
		return
	}

	progress, err := s.service.GetProgress(runID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, progress)
}

// handleRunProgress streams run progress via Server-Sent Events.
func (s *Server) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "missing run ID")
		return
	}

	progressCh, err := s.service.SubscribeProgress(runID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Event IDs count emitted events so reconnecting clients can tell
	// whether they missed updates.
	eventID := 0

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed - run reached a terminal status
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			eventID++
			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", eventID, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleRunResult returns the final result of a run, blocking until the
// run completes.
func (s *Server) handleRunResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "missing run ID")
		return
	}

	result, err := s.service.GetResult(runID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, result)
}

// handleCancelRun cancels an in-progress run.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "missing run ID")
		return
	}

	if err := s.service.CancelRun(runID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	logging.WithFields(r.Context(), "run_id", runID).Info("import run cancelled")

	writeJSON(w, map[string]string{"status": "cancelled"})
}

// handleListCatalogs lists ICD-10 catalog candidates under a directory.
func (s *Server) handleListCatalogs(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	if dir == "" {
		writeError(w, http.StatusBadRequest, "missing dir parameter")
		return
	}

	files, err := catalog.FindCatalogFiles(dir)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, map[string]any{"catalogs": files, "count": len(files)})
}

// handleRunHistory returns recent finished runs, newest first.
func (s *Server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "run history not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	records, err := s.history.RunHistory(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load run history")
		return
	}

	writeJSON(w, map[string]any{"runs": records, "count": len(records)})
}
