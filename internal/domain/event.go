package domain

import (
	"strings"
	"time"
)

// Event is a single state change read from the hub's history. Events are
// read-only input; the pipeline never mutates or persists them.
type Event struct {
	EntityID  string    `json:"entity_id"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// Domain returns the entity-type prefix of the event's entity id.
func (e Event) Domain() string {
	return EntityDomain(e.EntityID)
}

// EntityDomain extracts the domain prefix from an entity id, e.g. "light"
// from "light.kitchen". Ids without a separator are their own domain.
func EntityDomain(entityID string) string {
	if i := strings.IndexByte(entityID, '.'); i >= 0 {
		return entityID[:i]
	}
	return entityID
}
