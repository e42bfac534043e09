package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hearthwise/hearthwise/internal/domain"
	"github.com/hearthwise/hearthwise/internal/store"
)

// Mock stores for handler tests

type mockSynergyStore struct {
	synergies []domain.SynergyOpportunity
	err       error
}

func (m *mockSynergyStore) Upsert(ctx context.Context, s *domain.SynergyOpportunity) error {
	return m.err
}

func (m *mockSynergyStore) GetBySynergyID(ctx context.Context, id string) (*domain.SynergyOpportunity, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.synergies {
		if m.synergies[i].SynergyID == id {
			return &m.synergies[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockSynergyStore) List(ctx context.Context, opts domain.ListSynergiesOpts) ([]domain.SynergyOpportunity, error) {
	return m.synergies, m.err
}

func (m *mockSynergyStore) Count(ctx context.Context) (int, error) {
	return len(m.synergies), m.err
}

type mockRatingStore struct {
	ratings []domain.SynergyRating
	err     error
}

func (m *mockRatingStore) Create(ctx context.Context, r *domain.SynergyRating) error {
	if m.err != nil {
		return m.err
	}
	m.ratings = append(m.ratings, *r)
	return nil
}

func (m *mockRatingStore) ListBySynergyID(ctx context.Context, id string) ([]domain.SynergyRating, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.SynergyRating
	for _, r := range m.ratings {
		if r.SynergyID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func synergyRouter(h *SynergyHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/v1/synergies", h.List)
	r.Get("/v1/synergies/{synergyID}", h.Get)
	r.Post("/v1/synergies/{synergyID}/ratings", h.CreateRating)
	r.Get("/v1/synergies/{synergyID}/ratings", h.ListRatings)
	return r
}

func testSynergy() domain.SynergyOpportunity {
	return domain.SynergyOpportunity{
		SynergyID:    "pair:binary_sensor.hallway_motion>light.hallway",
		SynergyType:  domain.SynergyDevicePair,
		ChainDevices: []string{"binary_sensor.hallway_motion", "light.hallway"},
		SynergyDepth: 2,
		ImpactScore:  0.7,
		Confidence:   0.9,
		Complexity:   domain.ComplexityLow,
		Area:         "hallway",
	}
}

func TestSynergyHandler_List(t *testing.T) {
	h := NewSynergyHandler(&mockSynergyStore{synergies: []domain.SynergyOpportunity{testSynergy()}}, &mockRatingStore{})

	req := httptest.NewRequest(http.MethodGet, "/v1/synergies", nil)
	rec := httptest.NewRecorder()
	synergyRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Synergies []domain.SynergyOpportunity `json:"synergies"`
		Count     int                         `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 1 || len(body.Synergies) != 1 {
		t.Fatalf("expected 1 synergy, got %+v", body)
	}
}

func TestSynergyHandler_ListEmptyIsArray(t *testing.T) {
	h := NewSynergyHandler(&mockSynergyStore{}, &mockRatingStore{})

	req := httptest.NewRequest(http.MethodGet, "/v1/synergies", nil)
	rec := httptest.NewRecorder()
	synergyRouter(h).ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"synergies":[]`) {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestSynergyHandler_ListInvalidType(t *testing.T) {
	h := NewSynergyHandler(&mockSynergyStore{}, &mockRatingStore{})

	req := httptest.NewRequest(http.MethodGet, "/v1/synergies?type=nonsense", nil)
	rec := httptest.NewRecorder()
	synergyRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSynergyHandler_GetNotFound(t *testing.T) {
	h := NewSynergyHandler(&mockSynergyStore{}, &mockRatingStore{})

	req := httptest.NewRequest(http.MethodGet, "/v1/synergies/pair:missing", nil)
	rec := httptest.NewRecorder()
	synergyRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSynergyHandler_CreateRating(t *testing.T) {
	ratings := &mockRatingStore{}
	h := NewSynergyHandler(&mockSynergyStore{synergies: []domain.SynergyOpportunity{testSynergy()}}, ratings)

	body := `{"rating": 4, "comment": "works well"}`
	req := httptest.NewRequest(http.MethodPost,
		"/v1/synergies/pair:binary_sensor.hallway_motion>light.hallway/ratings",
		strings.NewReader(body))
	rec := httptest.NewRecorder()
	synergyRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(ratings.ratings) != 1 {
		t.Fatalf("expected 1 stored rating, got %d", len(ratings.ratings))
	}
	if ratings.ratings[0].Rating != 4 || ratings.ratings[0].Comment != "works well" {
		t.Fatalf("unexpected rating %+v", ratings.ratings[0])
	}
}

func TestSynergyHandler_CreateRatingValidation(t *testing.T) {
	h := NewSynergyHandler(&mockSynergyStore{synergies: []domain.SynergyOpportunity{testSynergy()}}, &mockRatingStore{})

	for _, body := range []string{`{"rating": 0}`, `{"rating": 6}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost,
			"/v1/synergies/pair:binary_sensor.hallway_motion>light.hallway/ratings",
			strings.NewReader(body))
		rec := httptest.NewRecorder()
		synergyRouter(h).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestSynergyHandler_CreateRatingUnknownSynergy(t *testing.T) {
	h := NewSynergyHandler(&mockSynergyStore{}, &mockRatingStore{})

	req := httptest.NewRequest(http.MethodPost, "/v1/synergies/pair:missing/ratings",
		strings.NewReader(`{"rating": 3}`))
	rec := httptest.NewRecorder()
	synergyRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
