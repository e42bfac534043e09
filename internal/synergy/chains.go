package synergy

import (
	"github.com/hearthwise/hearthwise/internal/cache"
	"github.com/hearthwise/hearthwise/internal/domain"
	"go.uber.org/zap"
)

// Chain is an expanded multi-hop synergy: every adjacent pair is itself a
// valid scored candidate and no device repeats.
type Chain struct {
	Devices     []string
	Area        string
	ImpactScore float64
	Confidence  float64
	Complexity  domain.Complexity
	Rules       []string
}

// Depth is the number of devices in the chain.
func (c Chain) Depth() int { return len(c.Devices) }

// ChainConfig bounds the expansion search.
type ChainConfig struct {
	MaxInputPairs int
	MaxChains     int
}

// ChainExpander grows 2-hop pairs into 3- and 4-hop chains with caching
// keyed by the ordered device tuple.
type ChainExpander struct {
	cfg    ChainConfig
	cache  *cache.TTL[Chain]
	logger *zap.Logger
}

func NewChainExpander(cfg ChainConfig, chainCache *cache.TTL[Chain], logger *zap.Logger) *ChainExpander {
	return &ChainExpander{cfg: cfg, cache: chainCache, logger: logger}
}

// Expand produces all bounded 3- and 4-device chains reachable from the
// scored pairs. Pairs beyond MaxInputPairs are ignored; production stops at
// MaxChains per depth even when more eligible bridges remain.
func (x *ChainExpander) Expand(pairs []ScoredPair) []Chain {
	if len(pairs) > x.cfg.MaxInputPairs {
		pairs = pairs[:x.cfg.MaxInputPairs]
	}

	byAction := make(map[string][]ScoredPair)
	for _, p := range pairs {
		byAction[p.Action.EntityID] = append(byAction[p.Action.EntityID], p)
	}

	three := x.expandThree(pairs, byAction)
	four := x.expandFour(three, pairs)

	x.logger.Debug("chain expansion finished",
		zap.Int("input_pairs", len(pairs)),
		zap.Int("three_chains", len(three)),
		zap.Int("four_chains", len(four)))
	return append(three, four...)
}

func (x *ChainExpander) expandThree(pairs []ScoredPair, byAction map[string][]ScoredPair) []Chain {
	var chains []Chain
	for _, second := range pairs { // B -> C
		for _, first := range byAction[second.Trigger.EntityID] { // A -> B
			if len(chains) >= x.cfg.MaxChains {
				return chains
			}
			a, b, c := first.Trigger.EntityID, second.Trigger.EntityID, second.Action.EntityID
			if c == a || c == b || a == b {
				continue
			}
			if !x.areasCompatible(first, second) {
				continue
			}
			chains = append(chains, x.buildChain([]string{a, b, c}, []ScoredPair{first, second}))
		}
	}
	return chains
}

func (x *ChainExpander) expandFour(three []Chain, pairs []ScoredPair) []Chain {
	byTrigger := make(map[string][]ScoredPair)
	for _, p := range pairs {
		byTrigger[p.Trigger.EntityID] = append(byTrigger[p.Trigger.EntityID], p)
	}

	var chains []Chain
	for _, base := range three {
		tail := base.Devices[len(base.Devices)-1]
		for _, next := range byTrigger[tail] { // C -> D
			if len(chains) >= x.cfg.MaxChains {
				return chains
			}
			d := next.Action.EntityID
			if contains(base.Devices, d) {
				continue
			}
			if base.Area != "" && next.Area != "" && base.Area != next.Area && !crossAreaValid(next) {
				continue
			}
			devices := append(append([]string{}, base.Devices...), d)
			chains = append(chains, x.extendChain(base, devices, next))
		}
	}
	return chains
}

func (x *ChainExpander) buildChain(devices []string, links []ScoredPair) Chain {
	key := domain.ChainKey(devices)
	if cached, ok := x.cache.Get(key); ok {
		return cached
	}

	var impact, confidence float64
	complexity := domain.ComplexityLow
	rules := make([]string, 0, len(links))
	for i, l := range links {
		impact += l.ImpactScore
		if i == 0 || l.Confidence < confidence {
			confidence = l.Confidence
		}
		if l.Rule.Complexity.Penalty() > complexity.Penalty() {
			complexity = l.Rule.Complexity
		}
		rules = append(rules, l.RelationshipType)
	}
	impact /= float64(len(links))

	area := links[0].Area
	for _, l := range links[1:] {
		if l.Area != area {
			area = ""
			break
		}
	}

	ch := Chain{
		Devices:     devices,
		Area:        area,
		ImpactScore: impact,
		Confidence:  confidence,
		Complexity:  complexity,
		Rules:       rules,
	}
	x.cache.Set(key, ch)
	return ch
}

// extendChain recomputes the aggregate scores of a chain grown by one link.
func (x *ChainExpander) extendChain(base Chain, devices []string, next ScoredPair) Chain {
	key := domain.ChainKey(devices)
	if cached, ok := x.cache.Get(key); ok {
		return cached
	}

	links := float64(len(base.Devices) - 1)
	impact := (base.ImpactScore*links + next.ImpactScore) / (links + 1)
	confidence := base.Confidence
	if next.Confidence < confidence {
		confidence = next.Confidence
	}
	complexity := base.Complexity
	if next.Rule.Complexity.Penalty() > complexity.Penalty() {
		complexity = next.Rule.Complexity
	}
	area := base.Area
	if next.Area != area {
		area = ""
	}

	ch := Chain{
		Devices:     devices,
		Area:        area,
		ImpactScore: impact,
		Confidence:  confidence,
		Complexity:  complexity,
		Rules:       append(append([]string{}, base.Rules...), next.RelationshipType),
	}
	x.cache.Set(key, ch)
	return ch
}

func (x *ChainExpander) areasCompatible(first, second ScoredPair) bool {
	if first.Area == second.Area {
		return true
	}
	return crossAreaValid(second)
}

// crossAreaValid gates bridges that span areas. Currently permissive;
// adjacency semantics need product input before tightening.
func crossAreaValid(_ ScoredPair) bool {
	return true
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
