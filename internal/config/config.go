package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/polysentry/polysentry/internal/secrets"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseDSN         string
	DatabaseMaxConns    int
	DatabaseMaxIdleTime time.Duration

	// Upstream APIs
	DataAPIBaseURL  string
	GammaAPIBaseURL string

	// Rate limits (requests per second)
	DataAPITradesRPS    float64
	DataAPIActivityRPS  float64
	DataAPIPositionsRPS float64
	GammaAPIMarketsRPS  float64

	// Webhook delivery
	WebhookURL           string
	WebhookRetryAttempts int
	WebhookTimeout       time.Duration

	// Polling
	PollIntervalSec int

	// Tracked accounts/markets
	TrackedConfigPath string

	// Volume outlier monitor
	VolumeOutlierEnabled  bool
	VolumeStdDevThreshold float64
	VolumeWindowHours     int
	VolumeMarketScanLimit int

	// Account activity monitor
	AccountActivityEnabled bool

	// Market probability monitor
	MarketProbabilityEnabled bool
	MarketChangeThresholdPct float64
	MarketSnapshotOffsetMin  int
	MarketUpdateIntervalMin  int
	TrackLiveVolume          bool

	// Trade activity monitor
	TradeActivityEnabled bool
	LargeTradeUSD        float64
	WhalePnlUSD          float64
	IncludeTraderIntel   bool

	// Smart money monitor
	SmartMoneyEnabled     bool
	SmartMoneyIntervalMin int

	// Housekeeping
	SnapshotRetentionDays int

	// Metrics/Health
	HealthPort int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment:         getEnv("ENVIRONMENT", "production"),
		DatabaseDSN:         getEnv("DATABASE_DSN", "polysentry:polysentry@tcp(mysql:3306)/polysentry?parseTime=true"),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMaxIdleTime: time.Duration(getEnvInt("DATABASE_MAX_IDLE_TIME_MINS", 5)) * time.Minute,

		DataAPIBaseURL:  getEnv("DATA_API_BASE_URL", "https://data-api.polymarket.com"),
		GammaAPIBaseURL: getEnv("GAMMA_API_BASE_URL", "https://gamma-api.polymarket.com"),

		DataAPITradesRPS:    getEnvFloat("DATA_API_TRADES_RPS", 2.0),
		DataAPIActivityRPS:  getEnvFloat("DATA_API_ACTIVITY_RPS", 1.0),
		DataAPIPositionsRPS: getEnvFloat("DATA_API_POSITIONS_RPS", 2.0),
		GammaAPIMarketsRPS:  getEnvFloat("GAMMA_API_MARKETS_RPS", 5.0),

		WebhookURL:           secrets.GetOptionalSecret("WEBHOOK_URL", ""),
		WebhookRetryAttempts: getEnvInt("WEBHOOK_RETRY_ATTEMPTS", 3),
		WebhookTimeout:       time.Duration(getEnvInt("WEBHOOK_TIMEOUT_MS", 5000)) * time.Millisecond,

		PollIntervalSec: getEnvInt("POLL_INTERVAL_SEC", 90),

		TrackedConfigPath: getEnv("TRACKED_CONFIG_PATH", "config/tracked.yml"),

		VolumeOutlierEnabled:  getEnvBool("VOLUME_OUTLIER_ENABLED", true),
		VolumeStdDevThreshold: getEnvFloat("VOLUME_STDDEV_THRESHOLD", 2.0),
		VolumeWindowHours:     getEnvInt("VOLUME_WINDOW_HOURS", 24),
		VolumeMarketScanLimit: getEnvInt("VOLUME_MARKET_SCAN_LIMIT", 100),

		AccountActivityEnabled: getEnvBool("ACCOUNT_ACTIVITY_ENABLED", true),

		MarketProbabilityEnabled: getEnvBool("MARKET_PROBABILITY_ENABLED", true),
		MarketChangeThresholdPct: getEnvFloat("MARKET_CHANGE_THRESHOLD_PCT", 1.0),
		MarketSnapshotOffsetMin:  getEnvInt("MARKET_SNAPSHOT_OFFSET_MIN", 15),
		MarketUpdateIntervalMin:  getEnvInt("MARKET_UPDATE_INTERVAL_MIN", 60),
		TrackLiveVolume:          getEnvBool("TRACK_LIVE_VOLUME", true),

		TradeActivityEnabled: getEnvBool("TRADE_ACTIVITY_ENABLED", true),
		LargeTradeUSD:        getEnvFloat("LARGE_TRADE_USD", 10.0),
		WhalePnlUSD:          getEnvFloat("WHALE_PNL_USD", 100000.0),
		IncludeTraderIntel:   getEnvBool("INCLUDE_TRADER_INTEL", true),

		SmartMoneyEnabled:     getEnvBool("SMART_MONEY_ENABLED", true),
		SmartMoneyIntervalMin: getEnvInt("SMART_MONEY_INTERVAL_MIN", 60),

		SnapshotRetentionDays: getEnvInt("SNAPSHOT_RETENTION_DAYS", 7),

		HealthPort: getEnvInt("HEALTH_PORT", 8080),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.WebhookURL == "" {
		return fmt.Errorf("WEBHOOK_URL is required")
	}
	if c.WebhookRetryAttempts < 1 || c.WebhookRetryAttempts > 10 {
		return fmt.Errorf("WEBHOOK_RETRY_ATTEMPTS must be between 1 and 10, got %d", c.WebhookRetryAttempts)
	}
	if c.PollIntervalSec < 30 {
		return fmt.Errorf("POLL_INTERVAL_SEC must be at least 30, got %d", c.PollIntervalSec)
	}
	if c.VolumeStdDevThreshold < 1 || c.VolumeStdDevThreshold > 5 {
		return fmt.Errorf("VOLUME_STDDEV_THRESHOLD must be between 1 and 5, got %.2f", c.VolumeStdDevThreshold)
	}
	if c.MarketChangeThresholdPct <= 0 {
		return fmt.Errorf("MARKET_CHANGE_THRESHOLD_PCT must be positive, got %.2f", c.MarketChangeThresholdPct)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
