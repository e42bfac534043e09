package synergy

import (
	"github.com/hearthwise/hearthwise/internal/domain"
)

// PairOpportunity converts a scored 2-hop candidate into a persistable
// synergy. The synergy id is derived from the ordered device tuple so the
// same pair always upserts the same row.
func PairOpportunity(p ScoredPair) domain.SynergyOpportunity {
	devices := []string{p.Trigger.EntityID, p.Action.EntityID}
	return domain.SynergyOpportunity{
		SynergyID:    "pair:" + domain.ChainKey(devices),
		SynergyType:  domain.SynergyDevicePair,
		ChainDevices: devices,
		SynergyDepth: len(devices),
		ImpactScore:  p.ImpactScore,
		Confidence:   p.Confidence,
		Complexity:   p.Rule.Complexity,
		Area:         p.Area,
		Explanation: map[string]any{
			"relationship": p.RelationshipType,
			"description":  p.Rule.Description,
		},
	}
}

// ChainOpportunity converts an expanded chain into a persistable synergy.
func ChainOpportunity(c Chain) domain.SynergyOpportunity {
	return domain.SynergyOpportunity{
		SynergyID:    "chain:" + domain.ChainKey(c.Devices),
		SynergyType:  domain.SynergyDeviceChain,
		ChainDevices: c.Devices,
		SynergyDepth: c.Depth(),
		ImpactScore:  c.ImpactScore,
		Confidence:   c.Confidence,
		Complexity:   c.Complexity,
		Area:         c.Area,
		Explanation: map[string]any{
			"relationships": c.Rules,
		},
	}
}

// FromPatterns derives pair synergies from stored co-occurrence patterns
// whose devices the catalog deems compatible. These carry pattern evidence
// and win device-pair collisions when merged with the general pipeline.
func FromPatterns(patterns []domain.Pattern, entities []domain.Entity, catalog *Catalog) []domain.SynergyOpportunity {
	byID := make(map[string]domain.Entity, len(entities))
	for _, e := range entities {
		byID[e.EntityID] = e
	}

	var out []domain.SynergyOpportunity
	for _, p := range patterns {
		if p.PatternType != domain.PatternCoOccurrence {
			continue
		}
		devices := p.Devices()
		if len(devices) != 2 {
			continue
		}
		a, okA := byID[devices[0]]
		b, okB := byID[devices[1]]
		if !okA || !okB {
			continue
		}

		rule, ok := catalog.Match(a, b)
		trigger, action := a, b
		if !ok {
			if rule, ok = catalog.Match(b, a); !ok {
				continue
			}
			trigger, action = b, a
		}

		ordered := []string{trigger.EntityID, action.EntityID}
		area := ""
		if trigger.AreaID == action.AreaID {
			area = trigger.AreaID
		}
		out = append(out, domain.SynergyOpportunity{
			SynergyID:           "pair:" + domain.ChainKey(ordered),
			SynergyType:         domain.SynergyDevicePair,
			ChainDevices:        ordered,
			SynergyDepth:        2,
			ImpactScore:         rule.BenefitScore * (1 - rule.Complexity.Penalty()),
			Confidence:          p.Confidence,
			Complexity:          rule.Complexity,
			Area:                area,
			PatternSupportScore: p.Confidence,
			ValidatedByPatterns: true,
			Explanation: map[string]any{
				"relationship": rule.Name,
				"description":  rule.Description,
				"pattern_key":  p.DeviceKey,
			},
		})
	}
	return out
}

// Merge combines pattern-derived and general synergies. On a device-set
// collision the pattern-derived entry wins.
func Merge(patternDerived, general []domain.SynergyOpportunity) []domain.SynergyOpportunity {
	seen := make(map[string]struct{}, len(patternDerived))
	out := make([]domain.SynergyOpportunity, 0, len(patternDerived)+len(general))
	for _, s := range patternDerived {
		seen[domain.JoinDeviceKey(s.ChainDevices...)] = struct{}{}
		out = append(out, s)
	}
	for _, s := range general {
		if _, dup := seen[domain.JoinDeviceKey(s.ChainDevices...)]; dup {
			continue
		}
		out = append(out, s)
	}
	return out
}

// AnnotatePatternSupport scores each synergy by how many of its adjacent
// device pairs have a detected co-occurrence pattern backing them.
func AnnotatePatternSupport(opps []domain.SynergyOpportunity, patterns []domain.Pattern) {
	byKey := make(map[string]float64)
	for _, p := range patterns {
		if p.PatternType == domain.PatternCoOccurrence {
			byKey[p.DeviceKey] = p.Confidence
		}
	}

	for i := range opps {
		if opps[i].ValidatedByPatterns {
			continue
		}
		var support float64
		links := 0
		for j := 0; j+1 < len(opps[i].ChainDevices); j++ {
			links++
			key := domain.JoinDeviceKey(opps[i].ChainDevices[j], opps[i].ChainDevices[j+1])
			support += byKey[key]
		}
		if links > 0 {
			opps[i].PatternSupportScore = support / float64(links)
		}
		opps[i].ValidatedByPatterns = opps[i].PatternSupportScore > 0
	}
}

// MismatchRate is the fraction of synergies sharing no entity with any
// detected pattern. High values suggest the detectors and the candidate
// engine are looking at different parts of the home.
func MismatchRate(opps []domain.SynergyOpportunity, patterns []domain.Pattern) float64 {
	if len(opps) == 0 {
		return 0
	}
	patternEntities := make(map[string]struct{})
	for _, p := range patterns {
		for _, d := range p.Devices() {
			patternEntities[d] = struct{}{}
		}
	}

	mismatched := 0
	for _, s := range opps {
		overlap := false
		for _, d := range s.ChainDevices {
			if _, ok := patternEntities[d]; ok {
				overlap = true
				break
			}
		}
		if !overlap {
			mismatched++
		}
	}
	return float64(mismatched) / float64(len(opps))
}
