// Package config defines the top-level configuration for the prediction
// venue and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by VENUE_* environment variables.
type Config struct {
	Venue    VenueConfig    `toml:"venue"`
	Risk     RiskConfig     `toml:"risk"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Bridge   BridgeConfig   `toml:"bridge"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// VenueConfig holds market creation and consensus parameters.
type VenueConfig struct {
	ExecutionThreshold          float64  `toml:"execution_threshold"`
	MaxPositionSize             float64  `toml:"max_position_size"`
	MaxActiveMarkets            int      `toml:"max_active_markets"`
	MinAgentsPerMarket          int      `toml:"min_agents_per_market"`
	MarketCreationIntervalHours int      `toml:"market_creation_interval_hours"`
	SignalCycleIntervalMinutes  int      `toml:"signal_cycle_interval_minutes"`
	CryptoAssets                []string `toml:"crypto_assets"`
	ReputationBaseDelta         int      `toml:"reputation_base_delta"`
	SuspensionAccuracyFloor     float64  `toml:"suspension_accuracy_floor"`
	AccuracyWindow              int      `toml:"accuracy_window"`
}

// RiskConfig holds pre-trade risk limits and circuit breaker thresholds.
type RiskConfig struct {
	MaxTotalExposure              float64 `toml:"max_total_exposure"`
	CorrelationLimit              float64 `toml:"correlation_limit"`
	MaxConcurrentPositions        int     `toml:"max_concurrent_positions"`
	DailyLossCircuitBreaker       float64 `toml:"daily_loss_circuit_breaker"`
	ConsecutiveLossCircuitBreaker int     `toml:"consecutive_loss_circuit_breaker"`
	StopLossPct                   float64 `toml:"stop_loss_pct"`
	TakeProfitPct                 float64 `toml:"take_profit_pct"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
}

// BridgeConfig holds execution bridge parameters.
type BridgeConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with the documented default values.
func Defaults() Config {
	return Config{
		Venue: VenueConfig{
			ExecutionThreshold:          0.70,
			MaxPositionSize:             0.025,
			MaxActiveMarkets:            25,
			MinAgentsPerMarket:          3,
			MarketCreationIntervalHours: 6,
			SignalCycleIntervalMinutes:  30,
			CryptoAssets:                []string{"BTC", "ETH", "SOL", "ARB", "AVAX"},
			ReputationBaseDelta:         150,
			SuspensionAccuracyFloor:     0.40,
			AccuracyWindow:              20,
		},
		Risk: RiskConfig{
			MaxTotalExposure:              0.15,
			CorrelationLimit:              0.70,
			MaxConcurrentPositions:        5,
			DailyLossCircuitBreaker:       0.10,
			ConsecutiveLossCircuitBreaker: 5,
			StopLossPct:                   0.015,
			TakeProfitPct:                 0.03,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "venue",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "venue-archive",
			ForcePathStyle: true,
			RetentionDays:  90,
		},
		Bridge: BridgeConfig{
			BaseURL:        "http://localhost:9100",
			TimeoutSeconds: 10,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"trade_executed", "trade_rejected", "breaker_tripped", "market_settled"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":    true,
	"sandbox": true,
	"server":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, sandbox, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Venue
	if c.Venue.ExecutionThreshold <= 0 || c.Venue.ExecutionThreshold > 1 {
		errs = append(errs, "venue: execution_threshold must be in (0, 1]")
	}
	if c.Venue.MaxPositionSize <= 0 || c.Venue.MaxPositionSize > 1 {
		errs = append(errs, "venue: max_position_size must be in (0, 1]")
	}
	if c.Venue.MaxActiveMarkets < 1 {
		errs = append(errs, "venue: max_active_markets must be >= 1")
	}
	if c.Venue.MinAgentsPerMarket < 1 {
		errs = append(errs, "venue: min_agents_per_market must be >= 1")
	}
	if c.Venue.MarketCreationIntervalHours < 1 {
		errs = append(errs, "venue: market_creation_interval_hours must be >= 1")
	}
	if c.Venue.SignalCycleIntervalMinutes < 1 {
		errs = append(errs, "venue: signal_cycle_interval_minutes must be >= 1")
	}
	if c.Venue.ReputationBaseDelta < 1 {
		errs = append(errs, "venue: reputation_base_delta must be >= 1")
	}
	if c.Venue.SuspensionAccuracyFloor < 0 || c.Venue.SuspensionAccuracyFloor > 1 {
		errs = append(errs, "venue: suspension_accuracy_floor must be in [0, 1]")
	}
	if c.Venue.AccuracyWindow < 1 {
		errs = append(errs, "venue: accuracy_window must be >= 1")
	}

	// Risk
	if c.Risk.MaxTotalExposure <= 0 || c.Risk.MaxTotalExposure > 1 {
		errs = append(errs, "risk: max_total_exposure must be in (0, 1]")
	}
	if c.Risk.CorrelationLimit <= 0 || c.Risk.CorrelationLimit > 1 {
		errs = append(errs, "risk: correlation_limit must be in (0, 1]")
	}
	if c.Risk.MaxConcurrentPositions < 1 {
		errs = append(errs, "risk: max_concurrent_positions must be >= 1")
	}
	if c.Risk.DailyLossCircuitBreaker <= 0 {
		errs = append(errs, "risk: daily_loss_circuit_breaker must be > 0")
	}
	if c.Risk.ConsecutiveLossCircuitBreaker < 1 {
		errs = append(errs, "risk: consecutive_loss_circuit_breaker must be >= 1")
	}
	if c.Risk.StopLossPct <= 0 {
		errs = append(errs, "risk: stop_loss_pct must be > 0")
	}
	if c.Risk.TakeProfitPct <= 0 {
		errs = append(errs, "risk: take_profit_pct must be > 0")
	}

	// Postgres (sandbox mode runs on in-memory stores and skips it).
	if strings.ToLower(c.Mode) != "sandbox" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be in [0, pool_max_conns]")
		}
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	// Bridge
	if strings.ToLower(c.Mode) == "full" && c.Bridge.BaseURL == "" {
		errs = append(errs, "bridge: base_url must not be empty for mode full")
	}
	if c.Bridge.TimeoutSeconds < 1 {
		errs = append(errs, "bridge: timeout_seconds must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
