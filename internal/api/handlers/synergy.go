package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hearthwise/hearthwise/internal/domain"
	"github.com/hearthwise/hearthwise/internal/store"
)

type SynergyHandler struct {
	synergies domain.SynergyStore
	ratings   domain.RatingStore
}

func NewSynergyHandler(synergies domain.SynergyStore, ratings domain.RatingStore) *SynergyHandler {
	return &SynergyHandler{synergies: synergies, ratings: ratings}
}

// List returns synergy opportunities, optionally filtered by ?type=,
// ?depth= and ?min_impact=.
func (h *SynergyHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := domain.ListSynergiesOpts{
		MinImpact: queryFloat(r, "min_impact"),
		Depth:     queryInt(r, "depth"),
		Limit:     queryInt(r, "limit"),
	}
	if t := r.URL.Query().Get("type"); t != "" {
		st := domain.SynergyType(t)
		if st != domain.SynergyDevicePair && st != domain.SynergyDeviceChain {
			writeError(w, http.StatusBadRequest, "invalid synergy type")
			return
		}
		opts.SynergyType = &st
	}

	synergies, err := h.synergies.List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list synergies")
		return
	}
	if synergies == nil {
		synergies = []domain.SynergyOpportunity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"synergies": synergies,
		"count":     len(synergies),
	})
}

func (h *SynergyHandler) Get(w http.ResponseWriter, r *http.Request) {
	synergyID := chi.URLParam(r, "synergyID")
	s, err := h.synergies.GetBySynergyID(r.Context(), synergyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "synergy not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get synergy")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type createRatingRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// CreateRating appends a feedback record for a synergy.
func (h *SynergyHandler) CreateRating(w http.ResponseWriter, r *http.Request) {
	synergyID := chi.URLParam(r, "synergyID")

	var req createRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	if _, err := h.synergies.GetBySynergyID(r.Context(), synergyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "synergy not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to verify synergy")
		return
	}

	rating := &domain.SynergyRating{
		SynergyID: synergyID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := h.ratings.Create(r.Context(), rating); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create rating")
		return
	}
	writeJSON(w, http.StatusCreated, rating)
}

func (h *SynergyHandler) ListRatings(w http.ResponseWriter, r *http.Request) {
	synergyID := chi.URLParam(r, "synergyID")
	ratings, err := h.ratings.ListBySynergyID(r.Context(), synergyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list ratings")
		return
	}
	if ratings == nil {
		ratings = []domain.SynergyRating{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ratings": ratings,
		"count":   len(ratings),
	})
}
