package synergy

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

const (
	sameAreaConfidence  = 0.9
	crossAreaConfidence = 0.7
)

// ScoredPair is a candidate with its computed impact and confidence.
type ScoredPair struct {
	Candidate
	ImpactScore float64
	Confidence  float64
}

// UsageStats carries historical co-activity counts keyed by the directed
// trigger>action pair key. Present only when a usage-data source exists.
type UsageStats struct {
	CoActivity map[string]float64
}

// Enhancer adjusts a candidate's score after base ranking. Implementations
// are selected once at construction; a failing enhancer falls back to the
// pre-enhancement score for that candidate only.
type Enhancer interface {
	Name() string
	Enhance(ctx context.Context, c Candidate, score float64) (float64, error)
}

// NoopEnhancer is the default when no optional scorer is configured.
type NoopEnhancer struct{}

func (NoopEnhancer) Name() string { return "noop" }

func (NoopEnhancer) Enhance(_ context.Context, _ Candidate, score float64) (float64, error) {
	return score, nil
}

// RankerConfig bounds what the ranker emits.
type RankerConfig struct {
	MinConfidence float64
}

// Ranker scores candidates, in basic mode from the catalog's benefit score
// and in advanced mode from per-area-normalized historical co-activity.
type Ranker struct {
	cfg       RankerConfig
	enhancers []Enhancer
	logger    *zap.Logger
}

func NewRanker(cfg RankerConfig, enhancers []Enhancer, logger *zap.Logger) *Ranker {
	if len(enhancers) == 0 {
		enhancers = []Enhancer{NoopEnhancer{}}
	}
	return &Ranker{cfg: cfg, enhancers: enhancers, logger: logger}
}

// Rank scores candidates, applying usage-informed impact when stats are
// available and the fixed benefit score otherwise. The result is sorted by
// impact descending and filtered to the confidence minimum.
func (r *Ranker) Rank(ctx context.Context, candidates []Candidate, usage *UsageStats) []ScoredPair {
	areaMax := map[string]float64{}
	if usage != nil {
		for _, c := range candidates {
			if co, ok := usage.CoActivity[c.PairKey()]; ok && co > areaMax[c.Area] {
				areaMax[c.Area] = co
			}
		}
	}

	out := make([]ScoredPair, 0, len(candidates))
	for _, c := range candidates {
		impact := c.Rule.BenefitScore * (1 - c.Rule.Complexity.Penalty())

		if usage != nil {
			if co, ok := usage.CoActivity[c.PairKey()]; ok && areaMax[c.Area] > 0 {
				impact = (co / areaMax[c.Area]) * (1 - c.Rule.Complexity.Penalty())
			}
		}

		impact = r.enhance(ctx, c, impact)

		confidence := crossAreaConfidence
		if c.Area != "" && c.Trigger.AreaID == c.Action.AreaID {
			confidence = sameAreaConfidence
		}
		if confidence < r.cfg.MinConfidence {
			continue
		}

		out = append(out, ScoredPair{Candidate: c, ImpactScore: impact, Confidence: confidence})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ImpactScore != out[j].ImpactScore {
			return out[i].ImpactScore > out[j].ImpactScore
		}
		return out[i].PairKey() < out[j].PairKey()
	})
	return out
}

// enhance runs the configured enhancer stack. Any enhancer error keeps the
// score that candidate had before that enhancer ran.
func (r *Ranker) enhance(ctx context.Context, c Candidate, score float64) float64 {
	for _, e := range r.enhancers {
		adjusted, err := e.Enhance(ctx, c, score)
		if err != nil {
			r.logger.Warn("score enhancer failed, keeping base score",
				zap.String("enhancer", e.Name()),
				zap.String("pair", c.PairKey()),
				zap.Error(err))
			continue
		}
		score = adjusted
	}
	return score
}
