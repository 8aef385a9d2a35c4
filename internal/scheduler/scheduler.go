// Package scheduler drives the venue's periodic work: market creation,
// the signal cycle, and the settlement poll. Each loop runs on its own ticker
// under a shared errgroup; a failure in one market's pipeline never stops the
// cycle for the others.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ethervenue/venue/internal/aggregator"
	"github.com/ethervenue/venue/internal/bridge"
	"github.com/ethervenue/venue/internal/domain"
	"github.com/ethervenue/venue/internal/notify"
	"github.com/ethervenue/venue/internal/registry"
	"github.com/ethervenue/venue/internal/reputation"
	"github.com/ethervenue/venue/internal/risk"
	"github.com/ethervenue/venue/internal/signalgen"
)

// BusChannel is the pub/sub channel venue events are published on.
const BusChannel = "venue:events"

// creationLockKey guards the market-creation tick across venue instances.
const creationLockKey = "venue:lock:market-creation"

// Config holds the loop intervals.
type Config struct {
	MarketCreationInterval time.Duration
	SignalCycleInterval    time.Duration
	SettlementPollInterval time.Duration
	ArchiveInterval        time.Duration
}

// Archiver is the optional cold-storage hook run on its own schedule.
type Archiver interface {
	Run(ctx context.Context) error
}

// Scheduler wires the pipeline stages together and runs them periodically.
type Scheduler struct {
	registry   *registry.Registry
	aggregator *aggregator.Aggregator
	signals    *signalgen.Generator
	risk       *risk.Manager
	reputation *reputation.Store
	bridge     bridge.Bridge
	cache      domain.ConsensusCache
	locks      domain.LockManager
	bus        domain.SignalBus
	notifier   *notify.Notifier
	archiver   Archiver
	cfg        Config
	logger     *slog.Logger

	breakerNotified bool
}

// New creates a Scheduler. archiver may be nil when cold storage is disabled.
func New(
	reg *registry.Registry,
	agg *aggregator.Aggregator,
	signals *signalgen.Generator,
	riskMgr *risk.Manager,
	rep *reputation.Store,
	br bridge.Bridge,
	cache domain.ConsensusCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	archiver Archiver,
	cfg Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		registry:   reg,
		aggregator: agg,
		signals:    signals,
		risk:       riskMgr,
		reputation: rep,
		bridge:     br,
		cache:      cache,
		locks:      locks,
		bus:        bus,
		notifier:   notifier,
		archiver:   archiver,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "scheduler")),
	}
}

// Run starts all loops and blocks until ctx is cancelled or a loop fails with
// a non-context error.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler starting",
		slog.Duration("market_creation_interval", s.cfg.MarketCreationInterval),
		slog.Duration("signal_cycle_interval", s.cfg.SignalCycleInterval),
		slog.Duration("settlement_poll_interval", s.cfg.SettlementPollInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.runLoop(ctx, s.cfg.MarketCreationInterval, "market creation", s.CreationTick)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("market creation loop: %w", err)
	})

	g.Go(func() error {
		err := s.runLoop(ctx, s.cfg.SignalCycleInterval, "signal cycle", s.SignalCycle)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("signal cycle loop: %w", err)
	})

	g.Go(func() error {
		err := s.runLoop(ctx, s.cfg.SettlementPollInterval, "settlement poll", s.SettlementPoll)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("settlement poll loop: %w", err)
	})

	if s.archiver != nil {
		g.Go(func() error {
			err := s.runLoop(ctx, s.cfg.ArchiveInterval, "archiver", s.archiver.Run)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archiver loop: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("scheduler stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("scheduler stopped cleanly")
	return nil
}

// runLoop runs tick immediately and then on every interval until ctx ends.
// Tick errors are logged, not fatal; the loop only exits on cancellation.
func (s *Scheduler) runLoop(ctx context.Context, interval time.Duration, name string, tick func(context.Context) error) error {
	if err := tick(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error(name+" tick failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := tick(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error(name+" tick failed", slog.String("error", err.Error()))
			}
		}
	}
}

// CreationTick creates the next market from the template rotation. The tick
// is guarded by a distributed lock so only one venue instance creates markets.
func (s *Scheduler) CreationTick(ctx context.Context) error {
	unlock, err := s.locks.Acquire(ctx, creationLockKey, s.cfg.MarketCreationInterval/2)
	if errors.Is(err, domain.ErrLockHeld) {
		s.logger.Debug("market creation tick held by another instance")
		return nil
	}
	if err != nil {
		return fmt.Errorf("scheduler: acquire creation lock: %w", err)
	}
	defer unlock()

	_, _, err = s.registry.CreateNext(ctx)
	return err
}

// SignalCycle runs the aggregation pipeline over every open market. One agent
// snapshot is taken per cycle so all markets see the same reputation state.
// Per-market failures are logged and isolated.
func (s *Scheduler) SignalCycle(ctx context.Context) error {
	snap, err := s.aggregator.Snapshot(ctx)
	if err != nil {
		return err
	}

	markets, err := s.registry.ListOpen(ctx)
	if err != nil {
		return err
	}

	for _, m := range markets {
		if err := s.processMarket(ctx, m, snap); err != nil {
			s.logger.ErrorContext(ctx, "market pipeline failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// processMarket runs consensus, signal evaluation, risk authorization, and
// execution for one market.
func (s *Scheduler) processMarket(ctx context.Context, m domain.Market, snap map[string]domain.Agent) error {
	cons, err := s.aggregator.ComputeWithSnapshot(ctx, m.ID, snap)
	if errors.Is(err, domain.ErrInsufficientData) {
		// Monitoring steady state, nothing to do.
		return nil
	}
	if err != nil {
		return err
	}

	if cacheErr := s.cache.Set(ctx, cons); cacheErr != nil {
		s.logger.WarnContext(ctx, "consensus cache write failed",
			slog.String("market_id", m.ID),
			slog.String("error", cacheErr.Error()),
		)
	}

	// Executable markets already carry a live trade; they are only refreshed
	// in the cache until settlement.
	if m.Status != domain.MarketStatusOpen {
		return nil
	}

	sig, ok := s.signals.Evaluate(m, cons)
	if !ok {
		return nil
	}
	s.publish(ctx, "signal_generated", map[string]any{
		"market_id": m.ID,
		"signal_id": sig.ID,
		"direction": sig.Direction,
		"strength":  sig.Strength,
		"size":      sig.Size,
	})
	s.notifier.Notify(ctx, notify.EventSignalGenerated, "Signal generated",
		fmt.Sprintf("%s %s: %s", sig.Direction, sig.Asset, sig.Reason))

	trade, err := s.risk.Authorize(ctx, *sig)
	if reason, rejected := domain.IsRiskRejected(err); rejected {
		s.publish(ctx, "trade_rejected", map[string]any{
			"market_id": m.ID,
			"trade_id":  trade.ID,
			"reason":    reason,
		})
		s.notifier.Notify(ctx, notify.EventTradeRejected, "Trade rejected",
			fmt.Sprintf("%s %s rejected: %s", sig.Direction, sig.Asset, reason))
		return nil
	}
	if err != nil {
		return err
	}

	return s.execute(ctx, m, trade)
}

// execute hands an approved trade to the bridge and records the result. A
// bridge failure rejects the trade with the execution reason; the market
// stays open and may re-signal next cycle.
func (s *Scheduler) execute(ctx context.Context, m domain.Market, trade domain.Trade) error {
	fill, err := s.bridge.Submit(ctx, bridge.Order{
		TradeID:    trade.ID,
		MarketID:   trade.MarketID,
		Asset:      trade.Asset,
		Direction:  trade.Direction,
		Size:       trade.Size,
		StopLoss:   trade.StopLoss,
		TakeProfit: trade.TakeProfit,
	})
	if err != nil {
		trade.Status = domain.TradeStatusRejected
		trade.Reason = domain.RejectExecutionFailed
		if errors.Is(err, domain.ErrExecutionTimeout) {
			trade.Reason = domain.RejectExecutionTimeout
		}
		if commitErr := s.risk.Commit(ctx, trade); commitErr != nil {
			return commitErr
		}
		s.publish(ctx, "trade_rejected", map[string]any{
			"market_id": m.ID,
			"trade_id":  trade.ID,
			"reason":    trade.Reason,
		})
		s.notifier.Notify(ctx, notify.EventTradeRejected, "Execution failed",
			fmt.Sprintf("%s %s: %s", trade.Direction, trade.Asset, trade.Reason))
		s.logger.WarnContext(ctx, "execution failed",
			slog.String("trade_id", trade.ID),
			slog.String("reason", string(trade.Reason)),
		)
		return nil
	}

	trade.Status = domain.TradeStatusExecuted
	trade.FillPrice = fill.FillPrice
	if err := s.risk.Commit(ctx, trade); err != nil {
		return err
	}
	if err := s.registry.MarkExecutable(ctx, m.ID); err != nil {
		return err
	}

	s.publish(ctx, "trade_executed", map[string]any{
		"market_id":  m.ID,
		"trade_id":   trade.ID,
		"direction":  trade.Direction,
		"size":       trade.Size,
		"fill_price": fill.FillPrice,
	})
	s.notifier.Notify(ctx, notify.EventTradeExecuted, "Trade executed",
		fmt.Sprintf("%s %s size %.1f%% at %.2f", trade.Direction, trade.Asset, trade.Size*100, fill.FillPrice))
	return nil
}

// SettlementPoll expires overdue markets and applies settlements reported by
// the bridge: trade P&L feeds the circuit breaker, the outcome feeds agent
// reputation, and the market reaches its terminal state.
func (s *Scheduler) SettlementPoll(ctx context.Context) error {
	expired, err := s.registry.ExpireDue(ctx)
	if err != nil {
		return err
	}
	for _, m := range expired {
		if cacheErr := s.cache.Invalidate(ctx, m.ID); cacheErr != nil {
			s.logger.WarnContext(ctx, "cache invalidate failed",
				slog.String("market_id", m.ID),
				slog.String("error", cacheErr.Error()),
			)
		}
	}

	settlements, err := s.bridge.Settlements(ctx)
	if err != nil {
		return err
	}

	for _, st := range settlements {
		if err := s.applySettlement(ctx, st); err != nil {
			s.logger.ErrorContext(ctx, "settlement failed",
				slog.String("market_id", st.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (s *Scheduler) applySettlement(ctx context.Context, st bridge.Settlement) error {
	if st.TradeID != "" {
		settledAt := st.SettledAt
		if settledAt.IsZero() {
			settledAt = time.Now().UTC()
		}
		if err := s.risk.Settle(ctx, st.TradeID, st.RealizedPnL, settledAt); err != nil {
			return err
		}
		s.notifyBreaker(ctx)
	}

	if err := s.registry.Settle(ctx, st.MarketID, st.Outcome); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound) {
			// Already settled or not a market of ours; the bridge may replay.
			s.logger.DebugContext(ctx, "settlement skipped",
				slog.String("market_id", st.MarketID),
				slog.String("error", err.Error()),
			)
			return nil
		}
		return err
	}

	if err := s.reputation.Settle(ctx, st.MarketID, st.Outcome); err != nil {
		return err
	}
	if cacheErr := s.cache.Invalidate(ctx, st.MarketID); cacheErr != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("market_id", st.MarketID),
			slog.String("error", cacheErr.Error()),
		)
	}

	s.publish(ctx, "market_settled", map[string]any{
		"market_id": st.MarketID,
		"outcome":   st.Outcome,
		"pnl":       st.RealizedPnL,
	})
	s.notifier.Notify(ctx, notify.EventMarketSettled, "Market settled",
		fmt.Sprintf("%s resolved %v, P&L %.2f%%", st.MarketID, st.Outcome, st.RealizedPnL*100))
	return nil
}

// notifyBreaker pushes a breaker alert once per trip; the flag rearms when
// the breaker clears.
func (s *Scheduler) notifyBreaker(ctx context.Context) {
	tripped := s.risk.Breaker().Tripped()
	if tripped && !s.breakerNotified {
		s.breakerNotified = true
		_, dailyLoss, streak := s.risk.Breaker().Snapshot()
		s.publish(ctx, "breaker_tripped", map[string]any{
			"daily_loss":  dailyLoss,
			"loss_streak": streak,
		})
		s.notifier.Notify(ctx, notify.EventBreakerTripped, "Circuit breaker tripped",
			fmt.Sprintf("daily loss %.2f%%, streak %d; all new authorization halted", dailyLoss*100, streak))
	}
	if !tripped {
		s.breakerNotified = false
	}
}

// publish sends a JSON event to the signal bus, best effort.
func (s *Scheduler) publish(ctx context.Context, eventType string, fields map[string]any) {
	fields["type"] = eventType
	fields["at"] = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(fields)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, BusChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "bus publish failed",
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
	}
}
