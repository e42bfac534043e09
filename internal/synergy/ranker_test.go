package synergy

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hearthwise/hearthwise/internal/domain"
)

func motionLightCandidate(area string) Candidate {
	rule := domain.RelationshipRule{
		Name:               "motion_to_light",
		TriggerDomain:      "binary_sensor",
		TriggerDeviceClass: "motion",
		ActionDomain:       "light",
		BenefitScore:       0.7,
		Complexity:         domain.ComplexityLow,
	}
	return Candidate{
		Trigger:          domain.Entity{EntityID: "binary_sensor." + area + "_motion", DeviceClass: "motion", AreaID: area},
		Action:           domain.Entity{EntityID: "light." + area, AreaID: area},
		Area:             area,
		RelationshipType: rule.Name,
		Rule:             rule,
	}
}

func TestRanker_BasicImpact(t *testing.T) {
	r := NewRanker(RankerConfig{MinConfidence: 0.6}, nil, testLogger())

	pairs := r.Rank(context.Background(), []Candidate{motionLightCandidate("hallway")}, nil)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}

	p := pairs[0]
	// Low complexity carries no penalty: impact equals the benefit score.
	if math.Abs(p.ImpactScore-0.7) > 1e-9 {
		t.Fatalf("expected impact 0.7, got %v", p.ImpactScore)
	}
	if p.Confidence != sameAreaConfidence {
		t.Fatalf("expected same-area confidence %v, got %v", sameAreaConfidence, p.Confidence)
	}
}

func TestRanker_ComplexityPenalty(t *testing.T) {
	r := NewRanker(RankerConfig{}, nil, testLogger())

	c := motionLightCandidate("hallway")
	c.Rule.Complexity = domain.ComplexityHigh

	pairs := r.Rank(context.Background(), []Candidate{c}, nil)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if math.Abs(pairs[0].ImpactScore-0.7*0.7) > 1e-9 {
		t.Fatalf("expected impact 0.49 under high complexity, got %v", pairs[0].ImpactScore)
	}
}

func TestRanker_AdvancedModeNormalizesPerArea(t *testing.T) {
	r := NewRanker(RankerConfig{}, nil, testLogger())

	busy := motionLightCandidate("hallway")
	quiet := motionLightCandidate("bedroom")

	usage := &UsageStats{CoActivity: map[string]float64{
		busy.PairKey():  40,
		quiet.PairKey(): 10,
	}}

	pairs := r.Rank(context.Background(), []Candidate{busy, quiet}, usage)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}

	// Each is its own area's maximum, so both normalize to 1.0.
	for _, p := range pairs {
		if math.Abs(p.ImpactScore-1.0) > 1e-9 {
			t.Fatalf("expected normalized impact 1.0 for %s, got %v", p.PairKey(), p.ImpactScore)
		}
	}
}

func TestRanker_SortedByImpactDesc(t *testing.T) {
	r := NewRanker(RankerConfig{}, nil, testLogger())

	high := motionLightCandidate("hallway")
	low := motionLightCandidate("bedroom")
	low.Rule.BenefitScore = 0.3

	pairs := r.Rank(context.Background(), []Candidate{low, high}, nil)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].ImpactScore < pairs[1].ImpactScore {
		t.Fatalf("expected descending impact, got %v then %v", pairs[0].ImpactScore, pairs[1].ImpactScore)
	}
}

func TestRanker_MinConfidenceFilter(t *testing.T) {
	r := NewRanker(RankerConfig{MinConfidence: 0.8}, nil, testLogger())

	crossArea := motionLightCandidate("hallway")
	crossArea.Action.AreaID = "landing"

	pairs := r.Rank(context.Background(), []Candidate{crossArea}, nil)
	if len(pairs) != 0 {
		t.Fatalf("expected cross-area pair below 0.8 confidence to be dropped, got %d", len(pairs))
	}
}

type failingEnhancer struct{}

func (failingEnhancer) Name() string { return "failing" }

func (failingEnhancer) Enhance(context.Context, Candidate, float64) (float64, error) {
	return 0, errors.New("enhancer backend down")
}

type doublingEnhancer struct{}

func (doublingEnhancer) Name() string { return "doubling" }

func (doublingEnhancer) Enhance(_ context.Context, _ Candidate, score float64) (float64, error) {
	return score * 2, nil
}

func TestRanker_EnhancerFailureKeepsBaseScore(t *testing.T) {
	r := NewRanker(RankerConfig{}, []Enhancer{failingEnhancer{}}, testLogger())

	pairs := r.Rank(context.Background(), []Candidate{motionLightCandidate("hallway")}, nil)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if math.Abs(pairs[0].ImpactScore-0.7) > 1e-9 {
		t.Fatalf("expected base score preserved on enhancer failure, got %v", pairs[0].ImpactScore)
	}
}

func TestRanker_EnhancerStackApplies(t *testing.T) {
	r := NewRanker(RankerConfig{}, []Enhancer{failingEnhancer{}, doublingEnhancer{}}, testLogger())

	pairs := r.Rank(context.Background(), []Candidate{motionLightCandidate("hallway")}, nil)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if math.Abs(pairs[0].ImpactScore-1.4) > 1e-9 {
		t.Fatalf("expected doubled score 1.4, got %v", pairs[0].ImpactScore)
	}
}
