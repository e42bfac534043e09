package synergy

import (
	"math"
	"testing"
	"time"

	"github.com/hearthwise/hearthwise/internal/cache"
	"github.com/hearthwise/hearthwise/internal/domain"
)

func scoredPair(trigger, action, area string, impact, confidence float64, complexity domain.Complexity) ScoredPair {
	return ScoredPair{
		Candidate: Candidate{
			Trigger:          domain.Entity{EntityID: trigger, AreaID: area},
			Action:           domain.Entity{EntityID: action, AreaID: area},
			Area:             area,
			RelationshipType: "test_rule",
			Rule:             domain.RelationshipRule{Name: "test_rule", Complexity: complexity},
		},
		ImpactScore: impact,
		Confidence:  confidence,
	}
}

func newTestExpander(maxChains int) *ChainExpander {
	return NewChainExpander(ChainConfig{MaxInputPairs: 100, MaxChains: maxChains},
		cache.NewTTL[Chain](time.Hour), testLogger())
}

func TestChainExpander_ThreeDeviceChain(t *testing.T) {
	x := newTestExpander(50)

	pairs := []ScoredPair{
		scoredPair("binary_sensor.door", "light.entry", "entry", 0.8, 0.9, domain.ComplexityLow),
		scoredPair("light.entry", "switch.porch", "entry", 0.6, 0.7, domain.ComplexityMedium),
	}

	chains := x.Expand(pairs)
	if len(chains) != 1 {
		t.Fatalf("expected 1 chain, got %d", len(chains))
	}

	c := chains[0]
	if c.Depth() != 3 {
		t.Fatalf("expected depth 3, got %d", c.Depth())
	}
	want := []string{"binary_sensor.door", "light.entry", "switch.porch"}
	for i, d := range want {
		if c.Devices[i] != d {
			t.Fatalf("device %d = %s, want %s", i, c.Devices[i], d)
		}
	}
	// Impact averages the links, confidence takes the weakest link, and
	// complexity takes the hardest one.
	if math.Abs(c.ImpactScore-0.7) > 1e-9 {
		t.Fatalf("expected impact 0.7, got %v", c.ImpactScore)
	}
	if c.Confidence != 0.7 {
		t.Fatalf("expected confidence 0.7, got %v", c.Confidence)
	}
	if c.Complexity != domain.ComplexityMedium {
		t.Fatalf("expected medium complexity, got %s", c.Complexity)
	}
	if c.Area != "entry" {
		t.Fatalf("expected area entry, got %q", c.Area)
	}
}

func TestChainExpander_FourDeviceChain(t *testing.T) {
	x := newTestExpander(50)

	pairs := []ScoredPair{
		scoredPair("binary_sensor.door", "light.entry", "entry", 0.9, 0.9, domain.ComplexityLow),
		scoredPair("light.entry", "switch.porch", "entry", 0.6, 0.8, domain.ComplexityLow),
		scoredPair("switch.porch", "camera_light.drive", "entry", 0.3, 0.7, domain.ComplexityHigh),
	}

	chains := x.Expand(pairs)

	var four *Chain
	for i := range chains {
		if chains[i].Depth() == 4 {
			four = &chains[i]
		}
	}
	if four == nil {
		t.Fatal("expected a 4-device chain")
	}
	if math.Abs(four.ImpactScore-0.6) > 1e-9 {
		t.Fatalf("expected impact 0.6, got %v", four.ImpactScore)
	}
	if four.Confidence != 0.7 {
		t.Fatalf("expected confidence 0.7, got %v", four.Confidence)
	}
	if four.Complexity != domain.ComplexityHigh {
		t.Fatalf("expected high complexity, got %s", four.Complexity)
	}
}

func TestChainExpander_NoDeviceRepeats(t *testing.T) {
	x := newTestExpander(50)

	// A -> B and B -> A would form a cycle.
	pairs := []ScoredPair{
		scoredPair("switch.a", "light.b", "room", 0.5, 0.9, domain.ComplexityLow),
		scoredPair("light.b", "switch.a", "room", 0.5, 0.9, domain.ComplexityLow),
	}

	for _, c := range x.Expand(pairs) {
		seen := map[string]struct{}{}
		for _, d := range c.Devices {
			if _, dup := seen[d]; dup {
				t.Fatalf("device %s repeats in chain %v", d, c.Devices)
			}
			seen[d] = struct{}{}
		}
	}
}

func TestChainExpander_MaxChainsBound(t *testing.T) {
	x := newTestExpander(2)

	// A fan-out wide enough to exceed the bound.
	var pairs []ScoredPair
	hubs := []string{"light.a", "light.b", "light.c", "light.d"}
	for _, h := range hubs {
		pairs = append(pairs, scoredPair("binary_sensor.motion", h, "room", 0.5, 0.9, domain.ComplexityLow))
		pairs = append(pairs, scoredPair(h, "switch.fan_"+h[len(h)-1:], "room", 0.5, 0.9, domain.ComplexityLow))
	}

	chains := x.Expand(pairs)
	three, four := 0, 0
	for _, c := range chains {
		switch c.Depth() {
		case 3:
			three++
		case 4:
			four++
		}
	}
	if three > 2 || four > 2 {
		t.Fatalf("expected at most 2 chains per depth, got %d three and %d four", three, four)
	}
}

func TestChainExpander_MaxInputPairsBound(t *testing.T) {
	x := NewChainExpander(ChainConfig{MaxInputPairs: 1, MaxChains: 50},
		cache.NewTTL[Chain](time.Hour), testLogger())

	pairs := []ScoredPair{
		scoredPair("binary_sensor.door", "light.entry", "entry", 0.8, 0.9, domain.ComplexityLow),
		scoredPair("light.entry", "switch.porch", "entry", 0.6, 0.7, domain.ComplexityLow),
	}

	if got := x.Expand(pairs); len(got) != 0 {
		t.Fatalf("expected no chains from a single usable pair, got %d", len(got))
	}
}
