package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ethervenue/venue/internal/aggregator"
	"github.com/ethervenue/venue/internal/registry"
	"github.com/ethervenue/venue/internal/reputation"
	"github.com/ethervenue/venue/internal/risk"
	"github.com/ethervenue/venue/internal/scheduler"
	"github.com/ethervenue/venue/internal/server"
	"github.com/ethervenue/venue/internal/server/handler"
	"github.com/ethervenue/venue/internal/server/ws"
	"github.com/ethervenue/venue/internal/signalgen"
)

// core holds the domain components shared by the pipeline and the API.
type core struct {
	registry   *registry.Registry
	aggregator *aggregator.Aggregator
	signals    *signalgen.Generator
	risk       *risk.Manager
	reputation *reputation.Store
}

// buildCore constructs the domain components from configuration.
func (a *App) buildCore(deps *Dependencies) *core {
	cfg := a.cfg

	reg := registry.New(deps.Markets, deps.Predictions, registry.DefaultPrices(), registry.Config{
		MaxActiveMarkets: cfg.Venue.MaxActiveMarkets,
		CryptoAssets:     cfg.Venue.CryptoAssets,
	}, a.logger)

	agg := aggregator.New(deps.Predictions, deps.Agents, cfg.Venue.MinAgentsPerMarket, a.logger)

	signals := signalgen.New(signalgen.Config{
		ExecutionThreshold: cfg.Venue.ExecutionThreshold,
		MaxPositionSize:    cfg.Venue.MaxPositionSize,
	}, a.logger)

	breaker := risk.NewBreaker(cfg.Risk.DailyLossCircuitBreaker, cfg.Risk.ConsecutiveLossCircuitBreaker)
	riskMgr := risk.NewManager(deps.Trades, breaker, risk.DefaultCorrelations(), risk.Config{
		MaxTotalExposure:       cfg.Risk.MaxTotalExposure,
		CorrelationLimit:       cfg.Risk.CorrelationLimit,
		MaxConcurrentPositions: cfg.Risk.MaxConcurrentPositions,
		StopLossPct:            cfg.Risk.StopLossPct,
		TakeProfitPct:          cfg.Risk.TakeProfitPct,
	}, a.logger)

	rep := reputation.NewStore(deps.Agents, deps.Predictions, deps.Events, reputation.Config{
		BaseDelta:       cfg.Venue.ReputationBaseDelta,
		SuspensionFloor: cfg.Venue.SuspensionAccuracyFloor,
		AccuracyWindow:  cfg.Venue.AccuracyWindow,
	}, a.logger)

	return &core{
		registry:   reg,
		aggregator: agg,
		signals:    signals,
		risk:       riskMgr,
		reputation: rep,
	}
}

// buildScheduler wires the pipeline scheduler around the core components.
// Settlements are polled at the signal cycle interval; archiving runs daily.
func (a *App) buildScheduler(deps *Dependencies, c *core) *scheduler.Scheduler {
	cycleInterval := time.Duration(a.cfg.Venue.SignalCycleIntervalMinutes) * time.Minute
	return scheduler.New(
		c.registry,
		c.aggregator,
		c.signals,
		c.risk,
		c.reputation,
		deps.Bridge,
		deps.Cache,
		deps.Locks,
		deps.Bus,
		deps.Notifier,
		deps.Archiver,
		scheduler.Config{
			MarketCreationInterval: time.Duration(a.cfg.Venue.MarketCreationIntervalHours) * time.Hour,
			SignalCycleInterval:    cycleInterval,
			SettlementPollInterval: cycleInterval,
			ArchiveInterval:        24 * time.Hour,
		},
		a.logger,
	)
}

// buildServer assembles the HTTP API around the shared stores. hub may be nil
// when the event stream is disabled.
func (a *App) buildServer(deps *Dependencies, c *core, hub *ws.Hub) *server.Server {
	startedAt := time.Now().UTC()
	h := server.Handlers{
		Health:      handler.NewHealthHandler(a.cfg.Mode, startedAt),
		Markets:     handler.NewMarketHandler(deps.Markets, deps.Cache, a.logger),
		Predictions: handler.NewPredictionHandler(c.registry, a.logger),
		Agents:      handler.NewAgentHandler(deps.Agents, deps.Events, c.reputation, a.logger),
		Trades:      handler.NewTradeHandler(deps.Trades, a.logger),
		Risk:        handler.NewRiskHandler(c.risk.Breaker(), a.logger),
		Metrics:     handler.NewMetricsHandler(deps.Markets, deps.Agents, deps.Trades, startedAt, a.logger),
		Hub:         hub,
	}
	return server.New(server.Config{
		Port:        a.cfg.Server.Port,
		APIKey:      a.cfg.Server.APIKey,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, h, a.logger)
}

// FullMode runs the complete venue: scheduler pipeline against the real
// bridge plus the HTTP API and event stream.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	c := a.buildCore(deps)
	sched := a.buildScheduler(deps, c)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })

	if a.cfg.Server.Enabled {
		hub := ws.NewHub(deps.Bus, scheduler.BusChannel, a.cfg.Mode, a.logger)
		g.Go(func() error { return hub.Run(ctx) })
		srv := a.buildServer(deps, c, hub)
		g.Go(func() error { return srv.Start(ctx) })
	}

	return g.Wait()
}

// SandboxMode runs the same pipeline against in-process infrastructure, with
// a simulator standing in for the agent fleet and market resolution.
func (a *App) SandboxMode(ctx context.Context, deps *Dependencies) error {
	c := a.buildCore(deps)
	sched := a.buildScheduler(deps, c)

	sim := newSimulator(
		c.registry,
		deps.Agents,
		deps.Trades,
		deps.Sandbox,
		time.Duration(a.cfg.Venue.SignalCycleIntervalMinutes)*time.Minute,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return sim.Run(ctx) })

	if a.cfg.Server.Enabled {
		hub := ws.NewHub(deps.Bus, scheduler.BusChannel, a.cfg.Mode, a.logger)
		g.Go(func() error { return hub.Run(ctx) })
		srv := a.buildServer(deps, c, hub)
		g.Go(func() error { return srv.Start(ctx) })
	}

	return g.Wait()
}

// ServerMode serves the API over existing data without running the pipeline.
// Predictions ingested here are picked up by a full-mode instance sharing the
// same database.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	c := a.buildCore(deps)

	g, ctx := errgroup.WithContext(ctx)
	hub := ws.NewHub(deps.Bus, scheduler.BusChannel, a.cfg.Mode, a.logger)
	g.Go(func() error { return hub.Run(ctx) })
	srv := a.buildServer(deps, c, hub)
	g.Go(func() error { return srv.Start(ctx) })

	return g.Wait()
}
