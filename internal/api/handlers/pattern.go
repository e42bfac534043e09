package handlers

import (
	"net/http"

	"github.com/hearthwise/hearthwise/internal/domain"
)

type PatternHandler struct {
	store domain.PatternStore
}

func NewPatternHandler(store domain.PatternStore) *PatternHandler {
	return &PatternHandler{store: store}
}

// List returns detected patterns, optionally filtered by ?type= and
// ?min_confidence=.
func (h *PatternHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := domain.ListPatternsOpts{
		MinConfidence: queryFloat(r, "min_confidence"),
		Limit:         queryInt(r, "limit"),
	}
	if t := r.URL.Query().Get("type"); t != "" {
		if !domain.ValidPatternType(t) {
			writeError(w, http.StatusBadRequest, "invalid pattern type")
			return
		}
		pt := domain.PatternType(t)
		opts.PatternType = &pt
	}

	patterns, err := h.store.List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list patterns")
		return
	}
	if patterns == nil {
		patterns = []domain.Pattern{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"patterns": patterns,
		"count":    len(patterns),
	})
}
