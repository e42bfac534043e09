package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hearthwise/hearthwise/internal/detect"
	"github.com/hearthwise/hearthwise/internal/domain"
	"github.com/hearthwise/hearthwise/internal/evolve"
	"github.com/hearthwise/hearthwise/internal/store"
	"github.com/hearthwise/hearthwise/internal/synergy"
	"go.uber.org/zap"
)

// ErrRunInProgress is returned when a run is refused because another one
// holds the single-flight guard.
var ErrRunInProgress = errors.New("analysis run already in progress")

// highMismatchRate is the fraction of synergies without pattern overlap
// above which the run carries a warning.
const highMismatchRate = 0.8

// Config bounds one analysis run.
type Config struct {
	WindowDays        int
	EventLimit        int
	NotificationTopic string
}

// PhaseResult records one pipeline phase's outcome: either a count of
// produced records or a failure reason. Failures never abort later phases.
type PhaseResult struct {
	Name     string        `json:"name"`
	Count    int           `json:"count"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Summary is the aggregated result of one run.
type Summary struct {
	Status            string        `json:"status"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
	PatternsDetected  int           `json:"patterns_detected"`
	SynergiesDetected int           `json:"synergies_detected"`
	DuplicatesSkipped int           `json:"duplicates_skipped"`
	Phases            []PhaseResult `json:"phases"`
	Errors            []string      `json:"errors"`
	Warnings          []string      `json:"warnings"`
}

func (s *Summary) success() bool { return len(s.Errors) == 0 }

func (s *Summary) addPhase(name string, count int, started time.Time, err error) {
	pr := PhaseResult{Name: name, Count: count, Duration: time.Since(started)}
	if err != nil {
		pr.Error = err.Error()
		s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", name, err))
	}
	s.Phases = append(s.Phases, pr)
}

// Orchestrator sequences one batch analysis run. At most one run executes
// at a time; a second invocation is refused, not queued.
type Orchestrator struct {
	cfg Config

	events     domain.EventSource
	candidates *synergy.CandidateEngine
	ranker     *synergy.Ranker
	chains     *synergy.ChainExpander
	timeOfDay  *detect.TimeOfDayDetector
	coOccur    *detect.CoOccurrenceDetector
	catalog    *synergy.Catalog
	tracker    *evolve.Tracker

	patternStore domain.PatternStore
	synergyStore domain.SynergyStore
	notifier     domain.NotificationSink
	logger       *zap.Logger

	runMu sync.Mutex

	stateMu sync.RWMutex
	last    *Summary
}

func NewOrchestrator(
	cfg Config,
	events domain.EventSource,
	candidates *synergy.CandidateEngine,
	ranker *synergy.Ranker,
	chains *synergy.ChainExpander,
	timeOfDay *detect.TimeOfDayDetector,
	coOccur *detect.CoOccurrenceDetector,
	catalog *synergy.Catalog,
	tracker *evolve.Tracker,
	patternStore domain.PatternStore,
	synergyStore domain.SynergyStore,
	notifier domain.NotificationSink,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		events:       events,
		candidates:   candidates,
		ranker:       ranker,
		chains:       chains,
		timeOfDay:    timeOfDay,
		coOccur:      coOccur,
		catalog:      catalog,
		tracker:      tracker,
		patternStore: patternStore,
		synergyStore: synergyStore,
		notifier:     notifier,
		logger:       logger,
	}
}

// LastSummary returns the most recent run's summary, or nil before the
// first run.
func (o *Orchestrator) LastSummary() *Summary {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.last
}

// Run executes the full pipeline. Phase failures are recorded in the
// summary and do not stop subsequent phases; only a concurrent run refusal
// surfaces as an error.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	if !o.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer o.runMu.Unlock()
	return o.run(ctx), nil
}

// StartAsync acquires the single-flight guard and launches the pipeline in
// the background. The guard is taken before returning, so a caller seeing
// nil knows the run is underway.
func (o *Orchestrator) StartAsync(timeout time.Duration) error {
	if !o.runMu.TryLock() {
		return ErrRunInProgress
	}
	go func() {
		defer o.runMu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		o.run(ctx)
	}()
	return nil
}

func (o *Orchestrator) run(ctx context.Context) *Summary {
	summary := &Summary{Status: "completed", StartedAt: time.Now()}
	defer func() {
		if !summary.success() {
			summary.Status = "completed_with_errors"
		}
		summary.Duration = time.Since(summary.StartedAt)
		o.stateMu.Lock()
		o.last = summary
		o.stateMu.Unlock()
		o.notify(summary)
	}()

	o.logger.Info("analysis run starting", zap.Int("window_days", o.cfg.WindowDays))

	// Inventory first: no devices means nothing to analyze.
	inv, err := o.candidates.FetchInventory(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("fetch inventory: %v", err))
		return summary
	}
	if len(inv.Entities) == 0 {
		o.logger.Info("no entities in inventory, ending run")
		return summary
	}

	events := o.fetchEvents(ctx, summary)
	if len(events) == 0 && summary.success() {
		o.logger.Info("no events in window, ending run")
		return summary
	}

	patterns := o.detectPatterns(events, summary)
	o.trackEvolution(ctx, patterns, summary)
	o.storePatterns(ctx, patterns, summary)

	// Re-read from the store so synergy generation references the
	// committed rows, not the in-memory batch. Uncapped: the default
	// listing limit would hide low-confidence rows on large installs.
	stored, err := o.patternStore.List(ctx, domain.ListPatternsOpts{Limit: domain.ListAll})
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("reload patterns: %v", err))
		stored = patterns
	}

	opportunities := o.generateSynergies(ctx, stored, inv, summary)
	o.validateOverlap(opportunities, stored, summary)
	o.storeSynergies(ctx, opportunities, summary)

	o.logger.Info("analysis run finished",
		zap.Int("patterns", summary.PatternsDetected),
		zap.Int("synergies", summary.SynergiesDetected),
		zap.Int("errors", len(summary.Errors)),
		zap.Duration("duration", time.Since(summary.StartedAt)))
	return summary
}

func (o *Orchestrator) fetchEvents(ctx context.Context, summary *Summary) []domain.Event {
	started := time.Now()
	end := time.Now()
	start := end.AddDate(0, 0, -o.cfg.WindowDays)

	events, err := o.events.FetchEvents(ctx, start, end, domain.EventFilter{Limit: o.cfg.EventLimit})
	summary.addPhase("fetch_events", len(events), started, err)
	return events
}

// detectPatterns runs both detectors, isolating a failure in one so the
// other still contributes.
func (o *Orchestrator) detectPatterns(events []domain.Event, summary *Summary) []domain.Pattern {
	var patterns []domain.Pattern

	started := time.Now()
	tod, err := safeDetect(func() []domain.Pattern { return o.timeOfDay.Detect(events) })
	summary.addPhase("detect_time_of_day", len(tod), started, err)
	patterns = append(patterns, tod...)

	started = time.Now()
	cooc, err := safeDetect(func() []domain.Pattern { return o.coOccur.Detect(events) })
	summary.addPhase("detect_co_occurrence", len(cooc), started, err)
	patterns = append(patterns, cooc...)

	summary.PatternsDetected = len(patterns)
	return patterns
}

// safeDetect isolates detector failures: a panicking detector contributes
// zero patterns instead of taking the run down.
func safeDetect(fn func() []domain.Pattern) (patterns []domain.Pattern, err error) {
	defer func() {
		if r := recover(); r != nil {
			patterns = nil
			err = fmt.Errorf("detector failed: %v", r)
		}
	}()
	return fn(), nil
}

// trackEvolution compares the fresh detection batch against the stored
// snapshots and folds the resulting trends back into the patterns about to
// be persisted. Deprecated or drifting devices surface as warnings.
func (o *Orchestrator) trackEvolution(ctx context.Context, patterns []domain.Pattern, summary *Summary) {
	if o.tracker == nil {
		return
	}
	started := time.Now()
	historical, err := o.patternStore.List(ctx, domain.ListPatternsOpts{Limit: domain.ListAll})
	if err != nil {
		summary.addPhase("track_evolution", 0, started, err)
		return
	}

	records := o.tracker.Compare(patterns, historical)

	byKey := make(map[string]domain.EvolutionRecord, len(records))
	updates := 0
	for _, r := range records {
		byKey[r.DeviceKey] = r
		if r.UpdateRecommended {
			updates++
		}
	}
	for i := range patterns {
		r, ok := byKey[patterns[i].DeviceKey]
		if !ok {
			continue
		}
		patterns[i].TrendDirection = r.OccurrencesTrend
		patterns[i].TrendStrength = r.ConfidenceTrend
	}

	if updates > 0 {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("%d patterns recommend automation updates", updates))
	}
	summary.addPhase("track_evolution", len(records), started, nil)
}

// storePatterns commits every detected pattern before synergy generation
// begins. Duplicate-key conflicts are skipped and counted.
func (o *Orchestrator) storePatterns(ctx context.Context, patterns []domain.Pattern, summary *Summary) {
	started := time.Now()
	storedCount := 0
	var firstErr error
	for i := range patterns {
		if err := o.patternStore.Upsert(ctx, &patterns[i]); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				summary.DuplicatesSkipped++
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			o.logger.Warn("pattern upsert failed",
				zap.String("device_key", patterns[i].DeviceKey),
				zap.Error(err))
			continue
		}
		storedCount++
	}
	summary.addPhase("store_patterns", storedCount, started, firstErr)
}

func (o *Orchestrator) generateSynergies(ctx context.Context, patterns []domain.Pattern, inv synergy.Inventory, summary *Summary) []domain.SynergyOpportunity {
	started := time.Now()
	patternDerived := synergy.FromPatterns(patterns, inv.Entities, o.catalog)
	summary.addPhase("pattern_synergies", len(patternDerived), started, nil)

	started = time.Now()
	candidates, err := o.candidates.Generate(ctx)
	if err != nil {
		summary.addPhase("candidate_synergies", 0, started, err)
		return patternDerived
	}

	usage := coActivityStats(patterns)
	pairs := o.ranker.Rank(ctx, candidates, usage)
	chains := o.chains.Expand(pairs)

	general := make([]domain.SynergyOpportunity, 0, len(pairs)+len(chains))
	for _, p := range pairs {
		general = append(general, synergy.PairOpportunity(p))
	}
	for _, c := range chains {
		general = append(general, synergy.ChainOpportunity(c))
	}
	summary.addPhase("candidate_synergies", len(general), started, nil)

	merged := synergy.Merge(patternDerived, general)
	synergy.AnnotatePatternSupport(merged, patterns)
	return merged
}

// coActivityStats turns mined co-occurrence patterns into the usage data
// the advanced ranker consumes. Nil when nothing was mined.
func coActivityStats(patterns []domain.Pattern) *synergy.UsageStats {
	co := make(map[string]float64)
	for _, p := range patterns {
		if p.PatternType != domain.PatternCoOccurrence {
			continue
		}
		devices := p.Devices()
		if len(devices) != 2 {
			continue
		}
		support, ok := p.MetadataFloat("support")
		if !ok {
			support = float64(p.Occurrences)
		}
		co[devices[0]+">"+devices[1]] = support
		co[devices[1]+">"+devices[0]] = support
	}
	if len(co) == 0 {
		return nil
	}
	return &synergy.UsageStats{CoActivity: co}
}

func (o *Orchestrator) validateOverlap(opps []domain.SynergyOpportunity, patterns []domain.Pattern, summary *Summary) {
	rate := synergy.MismatchRate(opps, patterns)
	if rate > highMismatchRate && len(opps) > 0 {
		warning := fmt.Sprintf("%.0f%% of synergies share no entity with any detected pattern", rate*100)
		summary.Warnings = append(summary.Warnings, warning)
		o.logger.Warn("high pattern/synergy mismatch", zap.Float64("rate", rate))
	}
}

func (o *Orchestrator) storeSynergies(ctx context.Context, opps []domain.SynergyOpportunity, summary *Summary) {
	started := time.Now()
	storedCount := 0
	var firstErr error
	for i := range opps {
		if err := o.synergyStore.Upsert(ctx, &opps[i]); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				summary.DuplicatesSkipped++
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			o.logger.Warn("synergy upsert failed",
				zap.String("synergy_id", opps[i].SynergyID),
				zap.Error(err))
			continue
		}
		storedCount++
	}
	summary.SynergiesDetected = storedCount
	summary.addPhase("store_synergies", storedCount, started, firstErr)
}

// notify publishes the completion message. Failures are logged, never fatal.
func (o *Orchestrator) notify(summary *Summary) {
	if o.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := domain.RunNotification{
		Event:             "analysis_complete",
		Timestamp:         time.Now(),
		PatternsDetected:  summary.PatternsDetected,
		SynergiesDetected: summary.SynergiesDetected,
		ProcessingTime:    summary.Duration.Seconds(),
		Success:           summary.success(),
	}
	if err := o.notifier.Publish(ctx, o.cfg.NotificationTopic, msg); err != nil {
		o.logger.Warn("completion notification failed", zap.Error(err))
	}
}
