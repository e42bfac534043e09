package domain

import (
	"context"
	"time"
)

// ListAll disables the listing cap. The analysis pipeline reads every
// committed row; API listings keep the stores' default cap.
const ListAll = -1

// ListPatternsOpts narrows pattern listings.
type ListPatternsOpts struct {
	PatternType   *PatternType
	MinConfidence float64
	Limit         int
}

// ListSynergiesOpts narrows synergy listings.
type ListSynergiesOpts struct {
	SynergyType *SynergyType
	MinImpact   float64
	Depth       int
	Limit       int
}

// PatternStore persists detected patterns keyed by (pattern_type, device_key).
// Upsert keeps the max of the stored and incoming confidence, refreshes
// occurrences and metadata, advances last_seen, and increments the history
// counter.
type PatternStore interface {
	Upsert(ctx context.Context, p *Pattern) error
	GetByKey(ctx context.Context, patternType PatternType, deviceKey string) (*Pattern, error)
	List(ctx context.Context, opts ListPatternsOpts) ([]Pattern, error)
	Count(ctx context.Context) (int, error)
}

// SynergyStore persists synergy opportunities keyed by synergy_id.
// Duplicate-key conflicts on Upsert are resolved in place, never fatal.
type SynergyStore interface {
	Upsert(ctx context.Context, s *SynergyOpportunity) error
	GetBySynergyID(ctx context.Context, synergyID string) (*SynergyOpportunity, error)
	List(ctx context.Context, opts ListSynergiesOpts) ([]SynergyOpportunity, error)
	Count(ctx context.Context) (int, error)
}

// RatingStore is the append-only feedback store written by the API layer.
type RatingStore interface {
	Create(ctx context.Context, r *SynergyRating) error
	ListBySynergyID(ctx context.Context, synergyID string) ([]SynergyRating, error)
}

// EventFilter narrows an event history fetch.
type EventFilter struct {
	EntityIDs []string
	Domains   []string
	Limit     int
}

// EventSource fetches historical state changes from the hub.
type EventSource interface {
	FetchEvents(ctx context.Context, start, end time.Time, filter EventFilter) ([]Event, error)
}

// InventorySource fetches the device and entity registries from the hub.
type InventorySource interface {
	FetchDevices(ctx context.Context) ([]Device, error)
	FetchEntities(ctx context.Context) ([]Entity, error)
}

// AutomationSource lists existing automations for exclusion filtering.
// Implementations may be absent; the pipeline degrades to treating every
// candidate as new.
type AutomationSource interface {
	FetchAutomations(ctx context.Context) ([]Automation, error)
}

// RunNotification is the fire-and-forget completion message published at
// the end of an analysis run.
type RunNotification struct {
	Event             string    `json:"event"`
	Timestamp         time.Time `json:"timestamp"`
	PatternsDetected  int       `json:"patterns_detected"`
	SynergiesDetected int       `json:"synergies_detected"`
	ProcessingTime    float64   `json:"processing_time"`
	Success           bool      `json:"success"`
}

// NotificationSink publishes run notifications to a topic. Publish failures
// are logged by callers, never propagated.
type NotificationSink interface {
	Publish(ctx context.Context, topic string, msg RunNotification) error
}
