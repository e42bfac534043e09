package detect

import (
	"math"
	"sort"
	"time"

	"github.com/hearthwise/hearthwise/internal/domain"
	"go.uber.org/zap"
)

// Time-of-day detection constants. The confidence formula's constants are
// tuned empirically, not derived; keep them literal.
const (
	MinEventsPerDevice = 5
	smallVolumeEvents  = 10 // 1 cluster at or below
	mediumVolumeEvents = 20 // 2 clusters at or below, else 3
	confidenceFloor    = 0.5
	confidenceCeiling  = 0.95
	varianceScaleMin   = 120.0 // std minutes at which the penalty saturates
)

// Thresholds are per-domain minimums; zero values fall back to the global
// config defaults.
type Thresholds struct {
	MinOccurrences int
	MinConfidence  float64
}

// TimeOfDayConfig carries the global defaults and per-domain overrides for
// the time-of-day detector.
type TimeOfDayConfig struct {
	MinOccurrences     int
	MinConfidence      float64
	VariancePenaltyCap float64
	ThresholdBoost     float64
	DomainOverrides    map[string]Thresholds
}

func DefaultTimeOfDayConfig() TimeOfDayConfig {
	return TimeOfDayConfig{
		MinOccurrences:     3,
		MinConfidence:      0.7,
		VariancePenaltyCap: 0.3,
		ThresholdBoost:     0.1,
		DomainOverrides: map[string]Thresholds{
			"light":   {MinOccurrences: 3, MinConfidence: 0.6},
			"switch":  {MinOccurrences: 3, MinConfidence: 0.6},
			"climate": {MinOccurrences: 5, MinConfidence: 0.7},
			"cover":   {MinOccurrences: 4, MinConfidence: 0.65},
			"lock":    {MinOccurrences: 5, MinConfidence: 0.8},
		},
	}
}

func (c TimeOfDayConfig) effective(d string) Thresholds {
	t := Thresholds{MinOccurrences: c.MinOccurrences, MinConfidence: c.MinConfidence}
	if o, ok := c.DomainOverrides[d]; ok {
		if o.MinOccurrences > 0 {
			t.MinOccurrences = o.MinOccurrences
		}
		if o.MinConfidence > 0 {
			t.MinConfidence = o.MinConfidence
		}
	}
	return t
}

// ConfidenceScorer computes a cluster's confidence. Pluggable so the tuned
// constants can be swapped without touching the detector.
type ConfidenceScorer interface {
	Score(occurrences, totalEvents, minOccurrences int, stdMinutes float64) float64
}

// VarianceScorer is the default scorer: occurrence ratio discounted by
// timing variance, boosted when the cluster doubles its minimum, clamped
// to [0.5, 0.95].
type VarianceScorer struct {
	PenaltyCap float64
	Boost      float64
}

func (s VarianceScorer) Score(occurrences, totalEvents, minOccurrences int, stdMinutes float64) float64 {
	if totalEvents == 0 {
		return confidenceFloor
	}
	ratio := float64(occurrences) / float64(totalEvents)
	penalty := stdMinutes / varianceScaleMin
	if penalty > s.PenaltyCap {
		penalty = s.PenaltyCap
	}
	conf := ratio * (1 - penalty)
	if occurrences >= 2*minOccurrences {
		conf += s.Boost
	}
	if conf < confidenceFloor {
		return confidenceFloor
	}
	if conf > confidenceCeiling {
		return confidenceCeiling
	}
	return conf
}

// TimeOfDayDetector clusters per-device activation timestamps into daily
// windows and emits one pattern per stable cluster.
type TimeOfDayDetector struct {
	cfg    TimeOfDayConfig
	filter *NoiseFilter
	scorer ConfidenceScorer
	logger *zap.Logger
}

func NewTimeOfDayDetector(cfg TimeOfDayConfig, filter *NoiseFilter, logger *zap.Logger) *TimeOfDayDetector {
	return &TimeOfDayDetector{
		cfg:    cfg,
		filter: filter,
		scorer: VarianceScorer{PenaltyCap: cfg.VariancePenaltyCap, Boost: cfg.ThresholdBoost},
		logger: logger,
	}
}

// SetScorer swaps the confidence scorer. Must be called before Detect.
func (d *TimeOfDayDetector) SetScorer(s ConfidenceScorer) {
	d.scorer = s
}

// Detect runs clustering over the noise-filtered event set and returns one
// pattern per qualifying cluster. Identical input yields identical output.
func (d *TimeOfDayDetector) Detect(events []domain.Event) []domain.Pattern {
	filtered := d.filter.FilterEvents(events)

	byDevice := make(map[string][]domain.Event)
	for _, e := range filtered {
		byDevice[e.EntityID] = append(byDevice[e.EntityID], e)
	}

	keys := make([]string, 0, len(byDevice))
	for k := range byDevice {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var patterns []domain.Pattern
	for _, entityID := range keys {
		evs := byDevice[entityID]
		if len(evs) < MinEventsPerDevice {
			continue
		}
		sort.Slice(evs, func(i, j int) bool { return evs[i].Timestamp.Before(evs[j].Timestamp) })
		patterns = append(patterns, d.detectDevice(entityID, evs)...)
	}

	d.logger.Debug("time-of-day detection finished",
		zap.Int("devices", len(byDevice)),
		zap.Int("patterns", len(patterns)))
	return patterns
}

func (d *TimeOfDayDetector) detectDevice(entityID string, evs []domain.Event) []domain.Pattern {
	hours := make([]float64, len(evs))
	for i, e := range evs {
		t := e.Timestamp
		hours[i] = float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
	}

	k := 3
	switch {
	case len(evs) <= smallVolumeEvents:
		k = 1
	case len(evs) <= mediumVolumeEvents:
		k = 2
	}

	th := d.cfg.effective(domain.EntityDomain(entityID))

	var out []domain.Pattern
	for _, members := range kmeans1D(hours, k) {
		if len(members) < th.MinOccurrences {
			continue
		}
		mean, std := clusterStats(hours, members)
		stdMinutes := std * 60

		conf := d.scorer.Score(len(members), len(evs), th.MinOccurrences, stdMinutes)
		if conf < th.MinConfidence {
			continue
		}

		hour := int(mean)
		minute := int(math.Round((mean - float64(hour)) * 60))
		if minute == 60 {
			minute = 0
			hour = (hour + 1) % 24
		}

		first, last := clusterSpan(evs, members)
		out = append(out, domain.Pattern{
			PatternType: domain.PatternTimeOfDay,
			DeviceKey:   entityID,
			Confidence:  conf,
			Occurrences: len(members),
			Metadata: map[string]any{
				"hour":        hour,
				"minute":      minute,
				"std_minutes": stdMinutes,
			},
			FirstSeen: first,
			LastSeen:  last,
		})
	}
	return out
}

func clusterSpan(evs []domain.Event, members []int) (first, last time.Time) {
	first = evs[members[0]].Timestamp
	last = first
	for _, i := range members[1:] {
		t := evs[i].Timestamp
		if t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	return first, last
}
