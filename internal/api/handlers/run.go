package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/hearthwise/hearthwise/internal/run"
	"go.uber.org/zap"
)

// runTimeout bounds a manually triggered analysis run.
const runTimeout = 30 * time.Minute

type RunHandler struct {
	orch   *run.Orchestrator
	logger *zap.Logger
}

func NewRunHandler(orch *run.Orchestrator, logger *zap.Logger) *RunHandler {
	return &RunHandler{orch: orch, logger: logger}
}

// Trigger starts an analysis run in the background. A run already in
// progress yields 409 instead of queueing.
func (h *RunHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.StartAsync(runTimeout); err != nil {
		if errors.Is(err, run.ErrRunInProgress) {
			writeError(w, http.StatusConflict, "analysis run already in progress")
			return
		}
		h.logger.Error("failed to start run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// Latest returns the most recent run summary.
func (h *RunHandler) Latest(w http.ResponseWriter, r *http.Request) {
	summary := h.orch.LastSummary()
	if summary == nil {
		writeError(w, http.StatusNotFound, "no runs recorded yet")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
