package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by HEARTHWISE_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("HEARTHWISE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func ServerPort() int {
	return envInt("SERVER_PORT", 8080)
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// HubURL is the base URL of the home hub API (events, registries, automations).
func HubURL() string {
	u := os.Getenv("HUB_URL")
	if u == "" {
		return "http://localhost:8123"
	}
	return u
}

func HubToken() string {
	return os.Getenv("HUB_TOKEN")
}

// APIToken guards the admin API. Empty disables auth (local deployments).
func APIToken() string {
	return os.Getenv("API_TOKEN")
}

// AnalysisSchedule is the cron expression for the periodic batch run.
func AnalysisSchedule() string {
	s := os.Getenv("ANALYSIS_SCHEDULE")
	if s == "" {
		return "0 */6 * * *"
	}
	return s
}

// AnalysisWindowDays is the trailing event window each run analyzes.
func AnalysisWindowDays() int {
	return envInt("ANALYSIS_WINDOW_DAYS", 30)
}

// EventFetchLimit caps one history fetch.
func EventFetchLimit() int {
	return envInt("EVENT_FETCH_LIMIT", 50000)
}

// Time-of-day detector thresholds. Domain overrides live in the detector.
func TimeOfDayMinOccurrences() int {
	return envInt("TOD_MIN_OCCURRENCES", 3)
}

func TimeOfDayMinConfidence() float64 {
	return envFloat("TOD_MIN_CONFIDENCE", 0.7)
}

// VariancePenaltyCap bounds the std-dev penalty in time-of-day confidence.
func VariancePenaltyCap() float64 {
	return envFloat("VARIANCE_PENALTY_CAP", 0.3)
}

// ThresholdBoost is added when a cluster doubles the occurrence minimum.
func ThresholdBoost() float64 {
	return envFloat("THRESHOLD_BOOST", 0.1)
}

// Co-occurrence detector thresholds.
func CoOccurrenceWindow() time.Duration {
	return envDuration("COOCCURRENCE_WINDOW", 5*time.Minute)
}

func CoOccurrenceMinSupport() int {
	return envInt("COOCCURRENCE_MIN_SUPPORT", 5)
}

func CoOccurrenceMinConfidence() float64 {
	return envFloat("COOCCURRENCE_MIN_CONFIDENCE", 0.5)
}

// LargeDatasetThreshold switches the co-occurrence detector to its bucketed
// index path above this many events.
func LargeDatasetThreshold() int {
	return envInt("LARGE_DATASET_THRESHOLD", 20000)
}

// Synergy pipeline.
func SynergyMinConfidence() float64 {
	return envFloat("SYNERGY_MIN_CONFIDENCE", 0.6)
}

func ChainMaxInputPairs() int {
	return envInt("CHAIN_MAX_INPUT_PAIRS", 200)
}

func ChainMaxResults() int {
	return envInt("CHAIN_MAX_RESULTS", 50)
}

// InventoryCacheTTL is how long device/entity registry fetches are reused.
func InventoryCacheTTL() time.Duration {
	return envDuration("INVENTORY_CACHE_TTL", 6*time.Hour)
}

func ChainCacheTTL() time.Duration {
	return envDuration("CHAIN_CACHE_TTL", time.Hour)
}

// RulesPath points at an optional YAML overlay for the relationship catalog.
func RulesPath() string {
	return os.Getenv("RULES_PATH")
}

// Evolution tracker thresholds, in minutes of time drift.
func DriftWarningMinutes() float64 {
	return envFloat("DRIFT_WARNING_MINUTES", 30)
}

func DriftStableMinutes() float64 {
	return envFloat("DRIFT_STABLE_MINUTES", 15)
}

func ConfidenceTrendThreshold() float64 {
	return envFloat("CONFIDENCE_TREND_THRESHOLD", 0.5)
}

// NotificationTopic is the pub/sub topic for run completion messages.
func NotificationTopic() string {
	t := os.Getenv("NOTIFICATION_TOPIC")
	if t == "" {
		return "hearthwise/analysis_complete"
	}
	return t
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps := envFloat("RATE_LIMIT_RPS", 100)
	if rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst := envInt("RATE_LIMIT_BURST", 20)
	if burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
