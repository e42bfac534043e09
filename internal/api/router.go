package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hearthwise/hearthwise/internal/api/handlers"
	mw "github.com/hearthwise/hearthwise/internal/api/middleware"
	"github.com/hearthwise/hearthwise/internal/cache"
	"github.com/hearthwise/hearthwise/internal/config"
	"github.com/hearthwise/hearthwise/internal/detect"
	"github.com/hearthwise/hearthwise/internal/domain"
	"github.com/hearthwise/hearthwise/internal/evolve"
	"github.com/hearthwise/hearthwise/internal/hub"
	"github.com/hearthwise/hearthwise/internal/run"
	"github.com/hearthwise/hearthwise/internal/store"
	"github.com/hearthwise/hearthwise/internal/synergy"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Background maintenance cadence for in-process state.
const (
	limiterCleanupInterval = 10 * time.Minute
	limiterMaxAge          = 10 * time.Minute
	chainCachePurgeEvery   = time.Hour
)

// App holds the router and the background scheduler for lifecycle
// management.
type App struct {
	Router    *chi.Mux
	Scheduler *run.Scheduler
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	// Stores
	patternStore := store.NewPatternStore(db, logger)
	synergyStore := store.NewSynergyStore(db, logger)
	ratingStore := store.NewRatingStore(db)
	maintenance := store.NewMaintenance(db, logger)

	// Hub clients
	hubClient := hub.NewClient(config.HubURL(), config.HubToken(), logger)
	notifier := hub.NewNotifier(config.HubURL(), config.HubToken(), logger)

	// Rule catalog, with optional operator overlay
	catalog := synergy.NewCatalog()
	if path := config.RulesPath(); path != "" {
		if err := catalog.LoadOverlay(path); err != nil {
			logger.Warn("rule overlay not loaded", zap.String("path", path), zap.Error(err))
		} else {
			logger.Info("rule overlay loaded", zap.String("path", path))
		}
	}

	// Detectors
	noiseFilter := detect.NewNoiseFilter()

	todCfg := detect.DefaultTimeOfDayConfig()
	todCfg.MinOccurrences = config.TimeOfDayMinOccurrences()
	todCfg.MinConfidence = config.TimeOfDayMinConfidence()
	todCfg.VariancePenaltyCap = config.VariancePenaltyCap()
	todCfg.ThresholdBoost = config.ThresholdBoost()
	timeOfDay := detect.NewTimeOfDayDetector(todCfg, noiseFilter, logger)

	coCfg := detect.DefaultCoOccurrenceConfig()
	coCfg.Window = config.CoOccurrenceWindow()
	coCfg.MinSupport = config.CoOccurrenceMinSupport()
	coCfg.MinConfidence = config.CoOccurrenceMinConfidence()
	coCfg.LargeDatasetThreshold = config.LargeDatasetThreshold()
	coOccur := detect.NewCoOccurrenceDetector(coCfg, noiseFilter, logger)

	// Synergy pipeline
	invCache := cache.NewTTL[synergy.Inventory](config.InventoryCacheTTL())
	chainCache := cache.NewTTL[synergy.Chain](config.ChainCacheTTL())
	// The inventory cache keeps its expired snapshot as the fetch-failure
	// fallback, so only the chain cache is purged.
	chainCache.PurgeEvery(chainCachePurgeEvery)

	candidates := synergy.NewCandidateEngine(catalog, hubClient, hubClient, invCache, logger)
	ranker := synergy.NewRanker(synergy.RankerConfig{
		MinConfidence: config.SynergyMinConfidence(),
	}, nil, logger)
	chains := synergy.NewChainExpander(synergy.ChainConfig{
		MaxInputPairs: config.ChainMaxInputPairs(),
		MaxChains:     config.ChainMaxResults(),
	}, chainCache, logger)

	trackerCfg := evolve.DefaultTrackerConfig()
	trackerCfg.DriftWarningMinutes = config.DriftWarningMinutes()
	trackerCfg.DriftStableMinutes = config.DriftStableMinutes()
	trackerCfg.ConfidenceTrendThreshold = config.ConfidenceTrendThreshold()
	tracker := evolve.NewTracker(trackerCfg, logger)

	orch := run.NewOrchestrator(run.Config{
		WindowDays:        config.AnalysisWindowDays(),
		EventLimit:        config.EventFetchLimit(),
		NotificationTopic: config.NotificationTopic(),
	}, hubClient, candidates, ranker, chains, timeOfDay, coOccur, catalog, tracker,
		patternStore, synergyStore, notifier, logger)

	scheduler, err := run.NewScheduler(config.AnalysisSchedule(), orch, logger)
	if err != nil {
		return nil, err
	}

	// Handlers
	patternHandler := handlers.NewPatternHandler(patternStore)
	synergyHandler := handlers.NewSynergyHandler(synergyStore, ratingStore)
	runHandler := handlers.NewRunHandler(orch, logger)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Scheduler: scheduler,
	}

	limiter := mw.NewRateLimiter(config.RateLimitRPS(), config.RateLimitBurst())
	limiter.CleanupEvery(limiterCleanupInterval, limiterMaxAge)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(limiter))

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.BearerAuth(config.APIToken()))

		r.Get("/health/integrity", integrityHandler(db, patternStore, synergyStore, maintenance, logger))

		r.Route("/runs", func(r chi.Router) {
			r.Post("/", runHandler.Trigger)
			r.Get("/latest", runHandler.Latest)
		})

		r.Get("/patterns", patternHandler.List)

		r.Route("/synergies", func(r chi.Router) {
			r.Get("/", synergyHandler.List)
			r.Route("/{synergyID}", func(r chi.Router) {
				r.Get("/", synergyHandler.Get)
				r.Post("/ratings", synergyHandler.CreateRating)
				r.Get("/ratings", synergyHandler.ListRatings)
			})
		})
	})

	return app, nil
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// integrityHandler reports per-table row counts, repairing a table and
// retrying once when the count query trips a corruption error.
func integrityHandler(db *pgxpool.Pool, patterns domain.PatternStore, synergies domain.SynergyStore, maintenance *store.Maintenance, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := "ok"
		tables := map[string]any{}

		patternCount := -1
		err := maintenance.WithRepair(ctx, "patterns", func() error {
			var err error
			patternCount, err = patterns.Count(ctx)
			return err
		})
		if err != nil {
			status = "degraded"
			logger.Error("pattern table integrity check failed", zap.Error(err))
			tables["patterns"] = map[string]any{"error": err.Error()}
		} else {
			tables["patterns"] = map[string]any{"rows": patternCount}
		}

		synergyCount := -1
		err = maintenance.WithRepair(ctx, "synergies", func() error {
			var err error
			synergyCount, err = synergies.Count(ctx)
			return err
		})
		if err != nil {
			status = "degraded"
			logger.Error("synergy table integrity check failed", zap.Error(err))
			tables["synergies"] = map[string]any{"error": err.Error()}
		} else {
			tables["synergies"] = map[string]any{"rows": synergyCount}
		}

		orphans, err := maintenance.OrphanedRatings(ctx)
		if err != nil {
			status = "degraded"
			logger.Error("orphaned rating scan failed", zap.Error(err))
			tables["synergy_ratings"] = map[string]any{"error": err.Error()}
		} else {
			tables["synergy_ratings"] = map[string]any{"orphaned": orphans}
		}

		code := http.StatusOK
		if status != "ok" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "tables": tables})
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.PatternStore     = (*store.PatternStore)(nil)
	_ domain.SynergyStore     = (*store.SynergyStore)(nil)
	_ domain.RatingStore      = (*store.RatingStore)(nil)
	_ domain.EventSource      = (*hub.Client)(nil)
	_ domain.InventorySource  = (*hub.Client)(nil)
	_ domain.AutomationSource = (*hub.Client)(nil)
	_ domain.NotificationSink = (*hub.Notifier)(nil)
)
