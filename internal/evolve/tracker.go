package evolve

import (
	"fmt"
	"math"
	"sort"

	"github.com/hearthwise/hearthwise/internal/domain"
	"go.uber.org/zap"
)

// TrackerConfig holds the drift and trend thresholds. Defaults mirror the
// values the classifier was tuned with.
type TrackerConfig struct {
	DriftWarningMinutes      float64
	DriftStableMinutes       float64
	ConfidenceTrendThreshold float64
	OccurrenceTrendThreshold float64
	LowConfidence            float64
}

func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		DriftWarningMinutes:      30,
		DriftStableMinutes:       15,
		ConfidenceTrendThreshold: 0.5,
		OccurrenceTrendThreshold: 0.25,
		LowConfidence:            0.5,
	}
}

// Tracker classifies how each device's pattern drifted between a historical
// snapshot series and the current detection run.
type Tracker struct {
	cfg    TrackerConfig
	logger *zap.Logger
}

func NewTracker(cfg TrackerConfig, logger *zap.Logger) *Tracker {
	return &Tracker{cfg: cfg, logger: logger}
}

// Compare produces one evolution record per (pattern type, device key)
// present in either snapshot set. Historical snapshots are ordered
// oldest-first before aggregation.
func (t *Tracker) Compare(current, historical []domain.Pattern) []domain.EvolutionRecord {
	cur := groupPatterns(current)
	hist := groupPatterns(historical)

	keys := make([]string, 0, len(cur)+len(hist))
	seen := make(map[string]struct{})
	for k := range cur {
		keys = append(keys, k)
		seen[k] = struct{}{}
	}
	for k := range hist {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	records := make([]domain.EvolutionRecord, 0, len(keys))
	for _, k := range keys {
		c, hasCur := cur[k]
		h, hasHist := hist[k]
		switch {
		case hasCur && !hasHist:
			records = append(records, domain.EvolutionRecord{
				DeviceKey:     c[len(c)-1].DeviceKey,
				EvolutionType: domain.EvolutionNew,
				Reason:        "pattern has no historical snapshot",
			})
		case !hasCur && hasHist:
			records = append(records, domain.EvolutionRecord{
				DeviceKey:         h[len(h)-1].DeviceKey,
				EvolutionType:     domain.EvolutionDeprecated,
				UpdateRecommended: true,
				Reason:            "pattern no longer detected",
			})
		default:
			records = append(records, t.compareOne(c[len(c)-1], h))
		}
	}
	return records
}

func (t *Tracker) compareOne(c domain.Pattern, history []domain.Pattern) domain.EvolutionRecord {
	drift := timeDriftMinutes(c, history)
	confTrend := confidenceTrend(c, history)
	occTrend := t.occurrencesTrend(c, history)

	rec := domain.EvolutionRecord{
		DeviceKey:        c.DeviceKey,
		TimeDriftMinutes: drift,
		ConfidenceTrend:  confTrend,
		OccurrencesTrend: occTrend,
	}

	switch {
	case drift > t.cfg.DriftWarningMinutes:
		rec.EvolutionType = domain.EvolutionEvolving
		rec.UpdateRecommended = true
		rec.Reason = fmt.Sprintf("activation time drifted %.0f minutes", drift)

	case math.Abs(confTrend) > t.cfg.ConfidenceTrendThreshold:
		if confTrend > 0 {
			rec.EvolutionType = domain.EvolutionStrengthening
			rec.Reason = "confidence trending up"
		} else if c.Confidence < t.cfg.LowConfidence {
			rec.EvolutionType = domain.EvolutionWeakening
			rec.UpdateRecommended = true
			rec.Reason = "confidence trending down below usable level"
		} else {
			rec.EvolutionType = domain.EvolutionEvolving
			rec.Reason = "confidence trending down"
		}

	case occTrend == domain.TrendDecreasing:
		rec.EvolutionType = domain.EvolutionWeakening
		rec.UpdateRecommended = c.Confidence < t.cfg.LowConfidence
		rec.Reason = "occurrences decreasing"

	case drift <= t.cfg.DriftStableMinutes:
		rec.EvolutionType = domain.EvolutionStable
		rec.Reason = "no significant change"

	default:
		rec.EvolutionType = domain.EvolutionEvolving
		rec.Reason = fmt.Sprintf("minor activation drift of %.0f minutes", drift)
	}
	return rec
}

// groupPatterns indexes snapshots by (pattern type, device key), keeping the
// latest entry for current and the full oldest-first series for history.
func groupPatterns(patterns []domain.Pattern) map[string][]domain.Pattern {
	grouped := make(map[string][]domain.Pattern)
	for _, p := range patterns {
		k := string(p.PatternType) + "|" + p.DeviceKey
		grouped[k] = append(grouped[k], p)
	}
	for _, series := range grouped {
		sort.Slice(series, func(i, j int) bool { return series[i].LastSeen.Before(series[j].LastSeen) })
	}
	return grouped
}

// timeDriftMinutes is the gap between the current time-of-day centroid and
// the historical mean, in minutes. Patterns without time metadata drift 0.
func timeDriftMinutes(c domain.Pattern, history []domain.Pattern) float64 {
	curMin, ok := todMinutes(c)
	if !ok {
		return 0
	}
	var sum float64
	n := 0
	for _, h := range history {
		if m, ok := todMinutes(h); ok {
			sum += m
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Abs(curMin - sum/float64(n))
}

func todMinutes(p domain.Pattern) (float64, bool) {
	hour, okH := p.MetadataFloat("hour")
	minute, okM := p.MetadataFloat("minute")
	if !okH || !okM {
		return 0, false
	}
	return hour*60 + minute, true
}

// confidenceTrend normalizes the current confidence against the historical
// distribution and clamps to [-1, 1]. A flat history degenerates to the
// sign of the raw difference.
func confidenceTrend(c domain.Pattern, history []domain.Pattern) float64 {
	if len(history) == 0 {
		return 0
	}
	var mean float64
	for _, h := range history {
		mean += h.Confidence
	}
	mean /= float64(len(history))

	var variance float64
	for _, h := range history {
		d := h.Confidence - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(history)))

	diff := c.Confidence - mean
	if std == 0 {
		if diff > 0 {
			return 1
		}
		if diff < 0 {
			return -1
		}
		return 0
	}
	trend := diff / std
	return math.Max(-1, math.Min(1, trend))
}

func (t *Tracker) occurrencesTrend(c domain.Pattern, history []domain.Pattern) domain.TrendDirection {
	if len(history) == 0 {
		return domain.TrendStable
	}
	var mean float64
	for _, h := range history {
		mean += float64(h.Occurrences)
	}
	mean /= float64(len(history))
	if mean == 0 {
		return domain.TrendStable
	}

	change := (float64(c.Occurrences) - mean) / mean
	switch {
	case change > t.cfg.OccurrenceTrendThreshold:
		return domain.TrendIncreasing
	case change < -t.cfg.OccurrenceTrendThreshold:
		return domain.TrendDecreasing
	}
	return domain.TrendStable
}
