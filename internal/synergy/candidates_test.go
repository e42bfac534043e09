package synergy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hearthwise/hearthwise/internal/cache"
	"github.com/hearthwise/hearthwise/internal/domain"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

type mockInventorySource struct {
	devices  []domain.Device
	entities []domain.Entity
	err      error
	calls    int
}

func (m *mockInventorySource) FetchDevices(ctx context.Context) ([]domain.Device, error) {
	return m.devices, m.err
}

func (m *mockInventorySource) FetchEntities(ctx context.Context) ([]domain.Entity, error) {
	m.calls++
	return m.entities, m.err
}

type mockAutomationSource struct {
	automations []domain.Automation
	err         error
}

func (m *mockAutomationSource) FetchAutomations(ctx context.Context) ([]domain.Automation, error) {
	return m.automations, m.err
}

func hallwayEntities() []domain.Entity {
	return []domain.Entity{
		{EntityID: "binary_sensor.hallway_motion", DeviceClass: "motion", AreaID: "hallway"},
		{EntityID: "light.hallway", AreaID: "hallway"},
		{EntityID: "light.bedroom", AreaID: "bedroom"},
	}
}

func newTestEngine(inv *mockInventorySource, autos domain.AutomationSource) *CandidateEngine {
	return NewCandidateEngine(NewCatalog(), inv, autos, cache.NewTTL[Inventory](time.Hour), testLogger())
}

func TestCandidateEngine_SameAreaPairing(t *testing.T) {
	inv := &mockInventorySource{entities: hallwayEntities()}
	e := newTestEngine(inv, nil)

	candidates, err := e.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// Only the hallway motion/light pair shares an area and a rule.
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if c.Trigger.EntityID != "binary_sensor.hallway_motion" || c.Action.EntityID != "light.hallway" {
		t.Fatalf("unexpected pair %s", c.PairKey())
	}
	if c.Area != "hallway" {
		t.Fatalf("expected area hallway, got %q", c.Area)
	}
	if c.RelationshipType != "motion_to_light" {
		t.Fatalf("expected motion_to_light, got %s", c.RelationshipType)
	}
}

func TestCandidateEngine_ExcludesExistingAutomations(t *testing.T) {
	inv := &mockInventorySource{entities: hallwayEntities()}
	autos := &mockAutomationSource{automations: []domain.Automation{{
		ID:              "auto_1",
		Alias:           "hallway motion light",
		TriggerEntities: []string{"binary_sensor.hallway_motion"},
		ActionEntities:  []string{"light.hallway"},
	}}}
	e := newTestEngine(inv, autos)

	candidates, err := e.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected automated pair to be excluded, got %d candidates", len(candidates))
	}
}

func TestCandidateEngine_AutomationFetchFailureIsNonFatal(t *testing.T) {
	inv := &mockInventorySource{entities: hallwayEntities()}
	autos := &mockAutomationSource{err: errors.New("hub timeout")}
	e := newTestEngine(inv, autos)

	candidates, err := e.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected exclusion filter to pass through on failure, got %d", len(candidates))
	}
}

func TestCandidateEngine_AreaLessBoundedByCatalog(t *testing.T) {
	inv := &mockInventorySource{entities: []domain.Entity{
		{EntityID: "binary_sensor.garage_motion", DeviceClass: "motion"},
		{EntityID: "light.garage"},
		{EntityID: "sensor.garage_humidity", DeviceClass: "humidity"},
	}}
	e := newTestEngine(inv, nil)

	candidates, err := e.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 area-less candidate, got %d", len(candidates))
	}
	if candidates[0].RelationshipType != "motion_to_light" {
		t.Fatalf("unexpected rule %s", candidates[0].RelationshipType)
	}
	if candidates[0].Area != "" {
		t.Fatalf("expected empty area, got %q", candidates[0].Area)
	}
}

func TestCandidateEngine_InventoryCached(t *testing.T) {
	inv := &mockInventorySource{entities: hallwayEntities()}
	e := newTestEngine(inv, nil)

	ctx := context.Background()
	if _, err := e.FetchInventory(ctx); err != nil {
		t.Fatalf("FetchInventory: %v", err)
	}
	if _, err := e.FetchInventory(ctx); err != nil {
		t.Fatalf("FetchInventory: %v", err)
	}
	if inv.calls != 1 {
		t.Fatalf("expected a single upstream fetch, got %d", inv.calls)
	}
}

func TestCandidateEngine_StaleFallbackOnRefreshFailure(t *testing.T) {
	inv := &mockInventorySource{entities: hallwayEntities()}
	invCache := cache.NewTTL[Inventory](time.Hour)
	e := NewCandidateEngine(NewCatalog(), inv, nil, invCache, testLogger())

	ctx := context.Background()
	if _, err := e.FetchInventory(ctx); err != nil {
		t.Fatalf("FetchInventory: %v", err)
	}

	// Expire the snapshot and make the hub unreachable.
	invCache.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	inv.err = errors.New("connection refused")

	got, err := e.FetchInventory(ctx)
	if err != nil {
		t.Fatalf("expected stale fallback, got error %v", err)
	}
	if len(got.Entities) != len(hallwayEntities()) {
		t.Fatalf("expected stale snapshot with %d entities, got %d", len(hallwayEntities()), len(got.Entities))
	}
}
