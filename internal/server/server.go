// Package server assembles the venue HTTP API: REST endpoints for markets,
// agents, trades, and risk controls, plus the WebSocket event stream.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethervenue/venue/internal/server/handler"
	"github.com/ethervenue/venue/internal/server/middleware"
	"github.com/ethervenue/venue/internal/server/ws"
)

// Config holds the HTTP server settings.
type Config struct {
	Port        int
	APIKey      string // empty disables auth
	CORSOrigins []string
}

// Handlers aggregates the endpoint handlers the server routes to. Hub may be
// nil when the event stream is disabled.
type Handlers struct {
	Health      *handler.HealthHandler
	Markets     *handler.MarketHandler
	Predictions *handler.PredictionHandler
	Agents      *handler.AgentHandler
	Trades      *handler.TradeHandler
	Risk        *handler.RiskHandler
	Metrics     *handler.MetricsHandler
	Hub         *ws.Hub
}

// Server is the venue HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds the routing table, wraps it in the middleware chain, and returns
// a Server ready to Start.
func New(cfg Config, h Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.Health)

	mux.HandleFunc("GET /api/markets", h.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", h.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/predictions", h.Predictions.SubmitPrediction)

	mux.HandleFunc("GET /api/agents", h.Agents.ListAgents)
	mux.HandleFunc("GET /api/agents/{id}", h.Agents.GetAgent)
	mux.HandleFunc("GET /api/agents/{id}/reputation", h.Agents.ListReputationEvents)
	mux.HandleFunc("POST /api/agents/{id}/reactivate", h.Agents.ReactivateAgent)

	mux.HandleFunc("GET /api/trades", h.Trades.ListTrades)
	mux.HandleFunc("GET /api/trades/open", h.Trades.ListOpenTrades)

	mux.HandleFunc("GET /api/risk/breaker", h.Risk.GetBreaker)
	mux.HandleFunc("POST /api/risk/breaker/reset", h.Risk.ResetBreaker)

	mux.HandleFunc("GET /api/metrics", h.Metrics.GetMetrics)

	if h.Hub != nil {
		mux.HandleFunc("GET /ws", h.Hub.HandleWS)
	}

	var root http.Handler = mux
	root = middleware.Auth(cfg.APIKey)(root)
	root = middleware.Logging(logger.With(slog.String("component", "http")))(root)
	root = middleware.CORS(cfg.CORSOrigins)(root)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      root,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With(slog.String("component", "server")),
	}
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		s.logger.Info("http server stopped")
		return nil
	}
}
