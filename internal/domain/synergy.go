package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type SynergyType string

const (
	SynergyDevicePair  SynergyType = "device_pair"
	SynergyDeviceChain SynergyType = "device_chain"
)

type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Penalty returns the scoring penalty applied for setup complexity.
func (c Complexity) Penalty() float64 {
	switch c {
	case ComplexityMedium:
		return 0.1
	case ComplexityHigh:
		return 0.3
	}
	return 0.0
}

func ValidComplexity(c string) bool {
	switch Complexity(c) {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	}
	return false
}

// SynergyOpportunity is a proposed multi-device automation not yet covered
// by an existing automation. SynergyDepth always equals len(ChainDevices);
// depth 2 is a pair, 3 and 4 are chains.
type SynergyOpportunity struct {
	ID                  uuid.UUID      `json:"id"`
	SynergyID           string         `json:"synergy_id"`
	SynergyType         SynergyType    `json:"synergy_type"`
	ChainDevices        []string       `json:"chain_devices"`
	SynergyDepth        int            `json:"synergy_depth"`
	ImpactScore         float64        `json:"impact_score"`
	Confidence          float64        `json:"confidence"`
	Complexity          Complexity     `json:"complexity"`
	Area                string         `json:"area,omitempty"`
	PatternSupportScore float64        `json:"pattern_support_score"`
	ValidatedByPatterns bool           `json:"validated_by_patterns"`
	Explanation         map[string]any `json:"explanation,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// ChainKey returns the ordered device tuple key used for synergy ids and
// chain-cache lookups.
func ChainKey(devices []string) string {
	return strings.Join(devices, ">")
}

// SynergyRating is an append-only feedback record against a synergy,
// written by the API layer and read back for re-ranking.
type SynergyRating struct {
	ID        uuid.UUID `json:"id"`
	SynergyID string    `json:"synergy_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
