package synergy

import (
	"context"
	"fmt"
	"sort"

	"github.com/hearthwise/hearthwise/internal/cache"
	"github.com/hearthwise/hearthwise/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const inventoryCacheKey = "inventory"

// Candidate is a compatible (trigger, action) entity pair that is not yet
// covered by an existing automation.
type Candidate struct {
	Trigger          domain.Entity
	Action           domain.Entity
	Area             string
	RelationshipType string
	Rule             domain.RelationshipRule
}

// PairKey is the directed trigger>action key for a candidate.
func (c Candidate) PairKey() string {
	return c.Trigger.EntityID + ">" + c.Action.EntityID
}

// Inventory is one cached snapshot of the hub registries.
type Inventory struct {
	Devices  []domain.Device
	Entities []domain.Entity
}

// CandidateEngine enumerates compatible entity pairs per area, filtered
// through the rule catalog and the existing-automation index.
type CandidateEngine struct {
	catalog     *Catalog
	inventory   domain.InventorySource
	automations domain.AutomationSource // may be nil
	invCache    *cache.TTL[Inventory]
	logger      *zap.Logger
}

func NewCandidateEngine(
	catalog *Catalog,
	inventory domain.InventorySource,
	automations domain.AutomationSource,
	invCache *cache.TTL[Inventory],
	logger *zap.Logger,
) *CandidateEngine {
	return &CandidateEngine{
		catalog:     catalog,
		inventory:   inventory,
		automations: automations,
		invCache:    invCache,
		logger:      logger,
	}
}

// FetchInventory returns the cached registries, refreshing on TTL expiry.
// A failed refresh falls back to a stale snapshot when one exists.
func (e *CandidateEngine) FetchInventory(ctx context.Context) (Inventory, error) {
	if inv, ok := e.invCache.Get(inventoryCacheKey); ok {
		return inv, nil
	}

	var inv Inventory
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		devices, err := e.inventory.FetchDevices(gctx)
		if err != nil {
			return fmt.Errorf("fetch devices: %w", err)
		}
		inv.Devices = devices
		return nil
	})
	g.Go(func() error {
		entities, err := e.inventory.FetchEntities(gctx)
		if err != nil {
			return fmt.Errorf("fetch entities: %w", err)
		}
		inv.Entities = entities
		return nil
	})
	if err := g.Wait(); err != nil {
		if stale, ok := e.invCache.GetStale(inventoryCacheKey); ok {
			e.logger.Warn("inventory refresh failed, serving stale cache", zap.Error(err))
			return stale, nil
		}
		return Inventory{}, err
	}

	e.invCache.Set(inventoryCacheKey, inv)
	return inv, nil
}

// Generate produces the filtered candidate list for the current inventory.
func (e *CandidateEngine) Generate(ctx context.Context) ([]Candidate, error) {
	inv, err := e.FetchInventory(ctx)
	if err != nil {
		return nil, err
	}

	candidates := e.pairEntities(inv.Entities)
	candidates = e.excludeAutomated(ctx, candidates)

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].PairKey() < candidates[j].PairKey() })
	return candidates, nil
}

func (e *CandidateEngine) pairEntities(entities []domain.Entity) []Candidate {
	byArea := make(map[string][]domain.Entity)
	var noArea []domain.Entity
	for _, ent := range entities {
		if ent.AreaID == "" {
			noArea = append(noArea, ent)
			continue
		}
		byArea[ent.AreaID] = append(byArea[ent.AreaID], ent)
	}

	var out []Candidate
	for area, members := range byArea {
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				out = append(out, e.matchPair(members[i], members[j], area)...)
			}
		}
	}

	// Entities without an area are only paired across domain combinations
	// the catalog knows, to bound combinatorics.
	for i := 0; i < len(noArea); i++ {
		for j := i + 1; j < len(noArea); j++ {
			if !e.catalog.DomainPair(noArea[i].Domain(), noArea[j].Domain()) {
				continue
			}
			out = append(out, e.matchPair(noArea[i], noArea[j], "")...)
		}
	}
	return out
}

// matchPair tests a pair against the catalog in both directions.
func (e *CandidateEngine) matchPair(a, b domain.Entity, area string) []Candidate {
	var out []Candidate
	if rule, ok := e.catalog.Match(a, b); ok {
		out = append(out, Candidate{Trigger: a, Action: b, Area: area, RelationshipType: rule.Name, Rule: rule})
	}
	if rule, ok := e.catalog.Match(b, a); ok {
		out = append(out, Candidate{Trigger: b, Action: a, Area: area, RelationshipType: rule.Name, Rule: rule})
	}
	return out
}

// excludeAutomated drops candidates whose (trigger, action) pair an existing
// automation already links. Without an automation source, or when listing
// fails, every candidate passes through.
func (e *CandidateEngine) excludeAutomated(ctx context.Context, candidates []Candidate) []Candidate {
	if e.automations == nil {
		return candidates
	}
	autos, err := e.automations.FetchAutomations(ctx)
	if err != nil {
		e.logger.Warn("automation listing unavailable, skipping exclusion filter", zap.Error(err))
		return candidates
	}

	linked := make(map[string]struct{})
	for _, a := range autos {
		for _, t := range a.TriggerEntities {
			for _, act := range a.ActionEntities {
				linked[t+">"+act] = struct{}{}
			}
		}
	}

	out := candidates[:0]
	for _, c := range candidates {
		if _, ok := linked[c.PairKey()]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}
