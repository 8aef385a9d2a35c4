package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/ethervenue/venue/internal/blob/s3"
	"github.com/ethervenue/venue/internal/bridge"
	"github.com/ethervenue/venue/internal/cache/local"
	"github.com/ethervenue/venue/internal/cache/redis"
	"github.com/ethervenue/venue/internal/config"
	"github.com/ethervenue/venue/internal/domain"
	"github.com/ethervenue/venue/internal/notify"
	"github.com/ethervenue/venue/internal/scheduler"
	"github.com/ethervenue/venue/internal/store/memory"
	"github.com/ethervenue/venue/internal/store/postgres"
)

// Dependencies bundles the infrastructure the application modes operate on.
// Constructed by Wire, torn down by the returned cleanup function.
type Dependencies struct {
	Markets     domain.MarketStore
	Agents      domain.AgentStore
	Predictions domain.PredictionStore
	Trades      domain.TradeStore
	Events      domain.ReputationEventStore

	Cache domain.ConsensusCache
	Locks domain.LockManager
	Bus   domain.SignalBus

	Bridge   bridge.Bridge
	Notifier *notify.Notifier
	Archiver scheduler.Archiver // nil when cold storage is disabled

	// Sandbox is set only in sandbox mode, where the simulator injects
	// settlements directly.
	Sandbox *bridge.SandboxBridge
}

// Wire constructs the concrete dependency implementations for the configured
// mode. Sandbox mode runs entirely in-process: memory stores, local caches,
// and the sandbox bridge. The other modes use PostgreSQL and Redis.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	mode := strings.ToLower(cfg.Mode)

	if mode == "sandbox" {
		deps.Markets = memory.NewMarketStore()
		deps.Agents = memory.NewAgentStore()
		deps.Predictions = memory.NewPredictionStore()
		deps.Trades = memory.NewTradeStore()
		deps.Events = memory.NewReputationEventStore()
		deps.Cache = local.NewConsensusCache()
		deps.Locks = local.NewLockManager()
		deps.Bus = local.NewSignalBus()

		sandbox := bridge.NewSandboxBridge()
		deps.Bridge = sandbox
		deps.Sandbox = sandbox
		deps.Notifier = buildNotifier(cfg, logger)
		return deps, cleanup, nil
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Markets = postgres.NewMarketStore(pool)
	deps.Agents = postgres.NewAgentStore(pool)
	deps.Predictions = postgres.NewPredictionStore(pool)
	deps.Trades = postgres.NewTradeStore(pool)
	deps.Events = postgres.NewReputationEventStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Cache = redis.NewConsensusCache(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)
	deps.Bus = redis.NewSignalBus(redisClient)

	// --- Execution bridge (server mode runs no pipeline and needs none) ---
	if mode == "full" {
		deps.Bridge = bridge.NewClient(
			cfg.Bridge.BaseURL,
			cfg.Bridge.APIKey,
			time.Duration(cfg.Bridge.TimeoutSeconds)*time.Second,
		)
	}

	// --- S3 cold storage ---
	if cfg.S3.Enabled && mode == "full" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		retention := time.Duration(cfg.S3.RetentionDays) * 24 * time.Hour
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.Markets,
			deps.Trades,
			deps.Events,
			retention,
			logger,
		)
	}

	deps.Notifier = buildNotifier(cfg, logger)
	return deps, cleanup, nil
}

// buildNotifier assembles the notification fan-out from whichever channels
// are configured. With no credentials it degrades to a silent notifier.
func buildNotifier(cfg *config.Config, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	return notify.NewNotifier(senders, cfg.Notify.Events, logger)
}
