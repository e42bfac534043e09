package detect

import (
	"strings"

	"github.com/hearthwise/hearthwise/internal/domain"
)

// EntityClass is the noise-filter verdict for one entity id.
type EntityClass string

const (
	ClassActionable   EntityClass = "actionable"
	ClassSystemNoise  EntityClass = "system_noise"
	ClassExternalData EntityClass = "external_data"
)

// Domains whose entities never represent automatable user behavior.
var systemNoiseDomains = map[string]struct{}{
	"camera": {},
	"image":  {},
	"button": {},
	"event":  {},
	"update": {},
}

// Domains fed by external data sources rather than the household.
var externalDataDomains = map[string]struct{}{
	"weather":  {},
	"calendar": {},
	"sun":      {},
}

// Name fragments that mark an entity as tracking external data regardless
// of its domain (sports team trackers, grid energy feeds, forecasts).
var externalNamePatterns = []string{
	"weather",
	"forecast",
	"calendar",
	"season",
	"sports",
	"team_tracker",
	"energy_price",
	"grid_",
}

// NoiseFilter classifies entity ids so detectors only analyze events that
// could plausibly drive an automation.
type NoiseFilter struct {
	systemDomains   map[string]struct{}
	externalDomains map[string]struct{}
	namePatterns    []string
}

func NewNoiseFilter() *NoiseFilter {
	return &NoiseFilter{
		systemDomains:   systemNoiseDomains,
		externalDomains: externalDataDomains,
		namePatterns:    externalNamePatterns,
	}
}

// Classify buckets an entity id as actionable, system noise, or external data.
func (f *NoiseFilter) Classify(entityID string) EntityClass {
	d := domain.EntityDomain(entityID)
	if _, ok := f.systemDomains[d]; ok {
		return ClassSystemNoise
	}
	if _, ok := f.externalDomains[d]; ok {
		return ClassExternalData
	}
	name := entityID
	if i := strings.IndexByte(entityID, '.'); i >= 0 {
		name = entityID[i+1:]
	}
	for _, p := range f.namePatterns {
		if strings.Contains(name, p) {
			return ClassExternalData
		}
	}
	return ClassActionable
}

// Actionable reports whether detectors should analyze this entity.
func (f *NoiseFilter) Actionable(entityID string) bool {
	return f.Classify(entityID) == ClassActionable
}

// FilterEvents returns the subset of events whose entities are actionable.
func (f *NoiseFilter) FilterEvents(events []domain.Event) []domain.Event {
	out := make([]domain.Event, 0, len(events))
	for _, e := range events {
		if f.Actionable(e.EntityID) {
			out = append(out, e)
		}
	}
	return out
}
