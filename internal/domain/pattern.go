package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type PatternType string

const (
	PatternTimeOfDay    PatternType = "time_of_day"
	PatternCoOccurrence PatternType = "co_occurrence"
)

func ValidPatternType(t string) bool {
	switch PatternType(t) {
	case PatternTimeOfDay, PatternCoOccurrence:
		return true
	}
	return false
}

// DeviceKeyDelimiter joins multiple entity ids into one device key for
// multi-device patterns.
const DeviceKeyDelimiter = "+"

type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendStable     TrendDirection = "stable"
	TrendDecreasing TrendDirection = "decreasing"
)

// Pattern is a detected behavioral regularity for one device (time_of_day)
// or a joined pair of devices (co_occurrence). Patterns are unique per
// (pattern_type, device_key); re-detection updates the stored row in place.
type Pattern struct {
	ID                     uuid.UUID      `json:"id"`
	PatternType            PatternType    `json:"pattern_type"`
	DeviceKey              string         `json:"device_key"`
	Confidence             float64        `json:"confidence"`
	Occurrences            int            `json:"occurrences"`
	Metadata               map[string]any `json:"metadata,omitempty"`
	FirstSeen              time.Time      `json:"first_seen"`
	LastSeen               time.Time      `json:"last_seen"`
	TrendDirection         TrendDirection `json:"trend_direction,omitempty"`
	TrendStrength          float64        `json:"trend_strength"`
	ConfidenceHistoryCount int            `json:"confidence_history_count"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// Devices splits the device key into its component entity ids.
func (p *Pattern) Devices() []string {
	return strings.Split(p.DeviceKey, DeviceKeyDelimiter)
}

// JoinDeviceKey builds a canonical multi-device key. Ids are sorted so the
// same pair always produces the same key regardless of detection order.
func JoinDeviceKey(ids ...string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return strings.Join(sorted, DeviceKeyDelimiter)
}

// MetadataFloat reads a numeric metadata field, tolerating the float64/int
// ambiguity that comes back from JSON round-trips.
func (p *Pattern) MetadataFloat(key string) (float64, bool) {
	v, ok := p.Metadata[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
