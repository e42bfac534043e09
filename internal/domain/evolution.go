package domain

type EvolutionType string

const (
	EvolutionStable        EvolutionType = "stable"
	EvolutionEvolving      EvolutionType = "evolving"
	EvolutionNew           EvolutionType = "new"
	EvolutionDeprecated    EvolutionType = "deprecated"
	EvolutionStrengthening EvolutionType = "strengthening"
	EvolutionWeakening     EvolutionType = "weakening"
)

// EvolutionRecord describes how a device's detected pattern has drifted
// between the historical snapshot and the current one. Derived on demand,
// never persisted by the core.
type EvolutionRecord struct {
	DeviceKey         string         `json:"device_key"`
	EvolutionType     EvolutionType  `json:"evolution_type"`
	TimeDriftMinutes  float64        `json:"time_drift_minutes"`
	ConfidenceTrend   float64        `json:"confidence_trend"`
	OccurrencesTrend  TrendDirection `json:"occurrences_trend"`
	UpdateRecommended bool           `json:"update_recommended"`
	Reason            string         `json:"reason"`
}
