package detect

import (
	"sort"
	"time"

	"github.com/hearthwise/hearthwise/internal/domain"
	"go.uber.org/zap"
)

// CoOccurrenceConfig carries the window and support/confidence minimums for
// co-occurrence mining, with per-domain overrides.
type CoOccurrenceConfig struct {
	Window                time.Duration
	MinSupport            int
	MinConfidence         float64
	LargeDatasetThreshold int
	DomainOverrides       map[string]Thresholds
}

func DefaultCoOccurrenceConfig() CoOccurrenceConfig {
	return CoOccurrenceConfig{
		Window:                5 * time.Minute,
		MinSupport:            5,
		MinConfidence:         0.5,
		LargeDatasetThreshold: 20000,
		DomainOverrides: map[string]Thresholds{
			"binary_sensor": {MinOccurrences: 4, MinConfidence: 0.5},
			"lock":          {MinOccurrences: 6, MinConfidence: 0.7},
		},
	}
}

// effective returns the strictest thresholds across both entity domains.
func (c CoOccurrenceConfig) effective(domainA, domainB string) Thresholds {
	t := Thresholds{MinOccurrences: c.MinSupport, MinConfidence: c.MinConfidence}
	for _, d := range []string{domainA, domainB} {
		o, ok := c.DomainOverrides[d]
		if !ok {
			continue
		}
		if o.MinOccurrences > t.MinOccurrences {
			t.MinOccurrences = o.MinOccurrences
		}
		if o.MinConfidence > t.MinConfidence {
			t.MinConfidence = o.MinConfidence
		}
	}
	return t
}

// CoOccurrenceDetector mines device pairs whose state changes land within a
// sliding window of each other.
type CoOccurrenceDetector struct {
	cfg    CoOccurrenceConfig
	filter *NoiseFilter
	logger *zap.Logger
}

func NewCoOccurrenceDetector(cfg CoOccurrenceConfig, filter *NoiseFilter, logger *zap.Logger) *CoOccurrenceDetector {
	return &CoOccurrenceDetector{cfg: cfg, filter: filter, logger: logger}
}

// Detect routes to the standard or large-dataset path by event volume. Both
// paths produce set-equivalent output for the same input.
func (d *CoOccurrenceDetector) Detect(events []domain.Event) []domain.Pattern {
	filtered := d.filter.FilterEvents(events)
	series := buildSeries(filtered)

	var pairs [][2]string
	if len(filtered) > d.cfg.LargeDatasetThreshold {
		pairs = d.candidatePairsBucketed(series)
	} else {
		pairs = allPairs(series)
	}

	var patterns []domain.Pattern
	for _, p := range pairs {
		if pat, ok := d.minePair(series, p[0], p[1]); ok {
			patterns = append(patterns, pat)
		}
	}

	sort.Slice(patterns, func(i, j int) bool { return patterns[i].DeviceKey < patterns[j].DeviceKey })

	d.logger.Debug("co-occurrence detection finished",
		zap.Int("entities", len(series)),
		zap.Int("candidate_pairs", len(pairs)),
		zap.Int("patterns", len(patterns)))
	return patterns
}

// entitySeries is one entity's transition timestamps in ascending order.
type entitySeries struct {
	entityID string
	times    []time.Time
}

func buildSeries(events []domain.Event) []entitySeries {
	byEntity := make(map[string][]time.Time)
	for _, e := range events {
		byEntity[e.EntityID] = append(byEntity[e.EntityID], e.Timestamp)
	}
	out := make([]entitySeries, 0, len(byEntity))
	for id, ts := range byEntity {
		sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
		out = append(out, entitySeries{entityID: id, times: ts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].entityID < out[j].entityID })
	return out
}

func allPairs(series []entitySeries) [][2]string {
	var pairs [][2]string
	for i := 0; i < len(series); i++ {
		for j := i + 1; j < len(series); j++ {
			pairs = append(pairs, [2]string{series[i].entityID, series[j].entityID})
		}
	}
	return pairs
}

// candidatePairsBucketed indexes transitions into window-sized time buckets
// and only emits entity pairs that share a bucket or land in adjacent ones.
// Any pair with at least one in-window co-occurrence must collide this way,
// so the pruned pair set mines to the same patterns as the exhaustive one.
func (d *CoOccurrenceDetector) candidatePairsBucketed(series []entitySeries) [][2]string {
	bucketNs := d.cfg.Window.Nanoseconds()
	if bucketNs <= 0 {
		return allPairs(series)
	}

	buckets := make(map[int64]map[string]struct{})
	for _, s := range series {
		for _, t := range s.times {
			b := t.UnixNano() / bucketNs
			if buckets[b] == nil {
				buckets[b] = make(map[string]struct{})
			}
			buckets[b][s.entityID] = struct{}{}
		}
	}

	seen := make(map[[2]string]struct{})
	for b, members := range buckets {
		ids := make([]string, 0, len(members))
		for id := range members {
			ids = append(ids, id)
		}
		if next, ok := buckets[b+1]; ok {
			for id := range next {
				if _, dup := members[id]; !dup {
					ids = append(ids, id)
				}
			}
		}
		sort.Strings(ids)
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				seen[[2]string{ids[i], ids[j]}] = struct{}{}
			}
		}
	}

	pairs := make([][2]string, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}

func (d *CoOccurrenceDetector) minePair(series []entitySeries, a, b string) (domain.Pattern, bool) {
	ta := findSeries(series, a)
	tb := findSeries(series, b)
	if ta == nil || tb == nil {
		return domain.Pattern{}, false
	}

	matchedA := countMatched(ta, tb, d.cfg.Window)
	matchedB := countMatched(tb, ta, d.cfg.Window)

	support := matchedA
	if matchedB < support {
		support = matchedB
	}
	total := len(ta)
	if len(tb) > total {
		total = len(tb)
	}

	th := d.cfg.effective(domain.EntityDomain(a), domain.EntityDomain(b))
	if support < th.MinOccurrences {
		return domain.Pattern{}, false
	}
	confidence := float64(support) / float64(total)
	if confidence < th.MinConfidence {
		return domain.Pattern{}, false
	}

	first := ta[0]
	if tb[0].Before(first) {
		first = tb[0]
	}
	last := ta[len(ta)-1]
	if tb[len(tb)-1].After(last) {
		last = tb[len(tb)-1]
	}

	return domain.Pattern{
		PatternType: domain.PatternCoOccurrence,
		DeviceKey:   domain.JoinDeviceKey(a, b),
		Confidence:  confidence,
		Occurrences: support,
		Metadata: map[string]any{
			"window_minutes": d.cfg.Window.Minutes(),
			"support":        support,
		},
		FirstSeen: first,
		LastSeen:  last,
	}, true
}

func findSeries(series []entitySeries, id string) []time.Time {
	i := sort.Search(len(series), func(i int) bool { return series[i].entityID >= id })
	if i < len(series) && series[i].entityID == id {
		return series[i].times
	}
	return nil
}

// countMatched counts events in xs that have at least one event in ys
// within the window on either side. Both slices must be sorted.
func countMatched(xs, ys []time.Time, window time.Duration) int {
	matched := 0
	j := 0
	for _, x := range xs {
		for j < len(ys) && ys[j].Before(x.Add(-window)) {
			j++
		}
		if j < len(ys) && !ys[j].After(x.Add(window)) {
			matched++
		}
	}
	return matched
}
