package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies VENUE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known VENUE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Venue ──
	setFloat64(&cfg.Venue.ExecutionThreshold, "VENUE_EXECUTION_THRESHOLD")
	setFloat64(&cfg.Venue.MaxPositionSize, "VENUE_MAX_POSITION_SIZE")
	setInt(&cfg.Venue.MaxActiveMarkets, "VENUE_MAX_ACTIVE_MARKETS")
	setInt(&cfg.Venue.MinAgentsPerMarket, "VENUE_MIN_AGENTS_PER_MARKET")
	setInt(&cfg.Venue.MarketCreationIntervalHours, "VENUE_MARKET_CREATION_INTERVAL_HOURS")
	setInt(&cfg.Venue.SignalCycleIntervalMinutes, "VENUE_SIGNAL_CYCLE_INTERVAL_MINUTES")
	setInt(&cfg.Venue.ReputationBaseDelta, "VENUE_REPUTATION_BASE_DELTA")
	setFloat64(&cfg.Venue.SuspensionAccuracyFloor, "VENUE_SUSPENSION_ACCURACY_FLOOR")
	setInt(&cfg.Venue.AccuracyWindow, "VENUE_ACCURACY_WINDOW")
	setStringSlice(&cfg.Venue.CryptoAssets, "VENUE_CRYPTO_ASSETS")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxTotalExposure, "VENUE_RISK_MAX_TOTAL_EXPOSURE")
	setFloat64(&cfg.Risk.CorrelationLimit, "VENUE_RISK_CORRELATION_LIMIT")
	setInt(&cfg.Risk.MaxConcurrentPositions, "VENUE_RISK_MAX_CONCURRENT_POSITIONS")
	setFloat64(&cfg.Risk.DailyLossCircuitBreaker, "VENUE_RISK_DAILY_LOSS_CIRCUIT_BREAKER")
	setInt(&cfg.Risk.ConsecutiveLossCircuitBreaker, "VENUE_RISK_CONSECUTIVE_LOSS_CIRCUIT_BREAKER")
	setFloat64(&cfg.Risk.StopLossPct, "VENUE_RISK_STOP_LOSS_PCT")
	setFloat64(&cfg.Risk.TakeProfitPct, "VENUE_RISK_TAKE_PROFIT_PCT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "VENUE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "VENUE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "VENUE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "VENUE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "VENUE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "VENUE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "VENUE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "VENUE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "VENUE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "VENUE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "VENUE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VENUE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VENUE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "VENUE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "VENUE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "VENUE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "VENUE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "VENUE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "VENUE_S3_REGION")
	setStr(&cfg.S3.Bucket, "VENUE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "VENUE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "VENUE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "VENUE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "VENUE_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "VENUE_S3_RETENTION_DAYS")

	// ── Bridge ──
	setStr(&cfg.Bridge.BaseURL, "VENUE_BRIDGE_BASE_URL")
	setStr(&cfg.Bridge.APIKey, "VENUE_BRIDGE_API_KEY")
	setInt(&cfg.Bridge.TimeoutSeconds, "VENUE_BRIDGE_TIMEOUT_SECONDS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "VENUE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "VENUE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "VENUE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "VENUE_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "VENUE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VENUE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "VENUE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "VENUE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "VENUE_MODE")
	setStr(&cfg.LogLevel, "VENUE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
