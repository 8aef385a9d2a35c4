package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethervenue/venue/internal/cache/local"
	"github.com/ethervenue/venue/internal/domain"
	"github.com/ethervenue/venue/internal/registry"
	"github.com/ethervenue/venue/internal/reputation"
	"github.com/ethervenue/venue/internal/risk"
	"github.com/ethervenue/venue/internal/server/handler"
	"github.com/ethervenue/venue/internal/store/memory"
)

type testFixture struct {
	srv     *Server
	mux     http.Handler
	markets *memory.MarketStore
	agents  *memory.AgentStore
	trades  *memory.TradeStore
	cache   *local.ConsensusCache
	breaker *risk.Breaker
}

func newTestFixture(t *testing.T, apiKey string) *testFixture {
	t.Helper()
	logger := slog.Default()

	markets := memory.NewMarketStore()
	agents := memory.NewAgentStore()
	predictions := memory.NewPredictionStore()
	trades := memory.NewTradeStore()
	events := memory.NewReputationEventStore()
	cache := local.NewConsensusCache()

	reg := registry.New(markets, predictions, registry.DefaultPrices(), registry.Config{
		MaxActiveMarkets: 10,
		CryptoAssets:     []string{"BTC"},
	}, logger)
	rep := reputation.NewStore(agents, predictions, events, reputation.Config{
		BaseDelta:       150,
		SuspensionFloor: 0.40,
		AccuracyWindow:  20,
	}, logger)
	breaker := risk.NewBreaker(0.10, 5)

	h := Handlers{
		Health:      handler.NewHealthHandler("sandbox", time.Now()),
		Markets:     handler.NewMarketHandler(markets, cache, logger),
		Predictions: handler.NewPredictionHandler(reg, logger),
		Agents:      handler.NewAgentHandler(agents, events, rep, logger),
		Trades:      handler.NewTradeHandler(trades, logger),
		Risk:        handler.NewRiskHandler(breaker, logger),
		Metrics:     handler.NewMetricsHandler(markets, agents, trades, time.Now(), logger),
	}

	srv := New(Config{Port: 0, APIKey: apiKey}, h, logger)
	return &testFixture{
		srv:     srv,
		mux:     srv.httpServer.Handler,
		markets: markets,
		agents:  agents,
		trades:  trades,
		cache:   cache,
		breaker: breaker,
	}
}

func (f *testFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func seedOpenMarket(t *testing.T, f *testFixture, id string) {
	t.Helper()
	require.NoError(t, f.markets.Create(context.Background(), domain.Market{
		ID:        id,
		Type:      domain.MarketTypeCryptoPrice,
		Question:  "Will BTC be above $109250 by 2026-10-01?",
		Crypto:    &domain.CryptoDetail{Asset: "BTC", TargetPrice: 109_250},
		Status:    domain.MarketStatusOpen,
		CreatedAt: time.Now().UTC(),
		Deadline:  time.Now().UTC().Add(30 * 24 * time.Hour),
	}))
}

func TestHealthEndpoint(t *testing.T) {
	f := newTestFixture(t, "")

	rec := f.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "sandbox", resp["mode"])
}

func TestListMarketsIncludesConsensus(t *testing.T) {
	f := newTestFixture(t, "")
	seedOpenMarket(t, f, "mkt-1")
	require.NoError(t, f.cache.Set(context.Background(), domain.Consensus{
		MarketID:    "mkt-1",
		Probability: 0.82,
		Confidence:  0.64,
		AgentCount:  5,
		ComputedAt:  time.Now().UTC(),
	}))

	rec := f.do(t, http.MethodGet, "/api/markets", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Markets []struct {
			ID          string `json:"id"`
			SignalState string `json:"signal_state"`
			Consensus   *struct {
				Probability float64 `json:"probability"`
				AgentCount  int     `json:"agent_count"`
			} `json:"consensus"`
		} `json:"markets"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Markets, 1)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "monitoring", resp.Markets[0].SignalState)
	require.NotNil(t, resp.Markets[0].Consensus)
	assert.InDelta(t, 0.82, resp.Markets[0].Consensus.Probability, 1e-9)
	assert.Equal(t, 5, resp.Markets[0].Consensus.AgentCount)
}

func TestGetMarketNotFound(t *testing.T) {
	f := newTestFixture(t, "")

	rec := f.do(t, http.MethodGet, "/api/markets/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitPrediction(t *testing.T) {
	f := newTestFixture(t, "")
	seedOpenMarket(t, f, "mkt-1")

	rec := f.do(t, http.MethodPost, "/api/markets/mkt-1/predictions",
		`{"agent_id":"agent-1","probability":0.9,"stake":25}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	m, err := f.markets.GetByID(context.Background(), "mkt-1")
	require.NoError(t, err)
	assert.InDelta(t, 25, m.Volume, 1e-9)
}

func TestSubmitPredictionValidation(t *testing.T) {
	f := newTestFixture(t, "")
	seedOpenMarket(t, f, "mkt-1")

	rec := f.do(t, http.MethodPost, "/api/markets/mkt-1/predictions",
		`{"agent_id":"agent-1","probability":1.5,"stake":25}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/markets/missing/predictions",
		`{"agent_id":"agent-1","probability":0.5,"stake":25}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitPredictionClosedMarket(t *testing.T) {
	f := newTestFixture(t, "")
	now := time.Now().UTC()
	require.NoError(t, f.markets.Create(context.Background(), domain.Market{
		ID:        "mkt-expired",
		Type:      domain.MarketTypeTechTrend,
		Status:    domain.MarketStatusExpired,
		CreatedAt: now.Add(-time.Hour),
		Deadline:  now.Add(-time.Minute),
	}))

	rec := f.do(t, http.MethodPost, "/api/markets/mkt-expired/predictions",
		`{"agent_id":"agent-1","probability":0.5,"stake":10}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReactivateAgent(t *testing.T) {
	f := newTestFixture(t, "")
	require.NoError(t, f.agents.Upsert(context.Background(), domain.Agent{
		ID:     "agent-1",
		Type:   domain.AgentTypeCryptoSpecialist,
		Status: domain.AgentStatusSuspended,
	}))

	rec := f.do(t, http.MethodPost, "/api/agents/agent-1/reactivate", "")
	require.Equal(t, http.StatusOK, rec.Code)

	a, err := f.agents.GetByID(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusActive, a.Status)
}

func TestBreakerResetEndpoint(t *testing.T) {
	f := newTestFixture(t, "")
	f.breaker.RecordSettlement(-0.2) // over the daily loss limit

	rec := f.do(t, http.MethodGet, "/api/risk/breaker", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Tripped bool `json:"tripped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Tripped)

	rec = f.do(t, http.MethodPost, "/api/risk/breaker/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.False(t, view.Tripped)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newTestFixture(t, "")
	seedOpenMarket(t, f, "mkt-1")
	require.NoError(t, f.agents.Upsert(context.Background(), domain.Agent{
		ID: "agent-1", Status: domain.AgentStatusActive,
	}))
	closed := time.Now().UTC()
	require.NoError(t, f.trades.Create(context.Background(), domain.Trade{
		ID: "trade-1", MarketID: "mkt-1", Direction: domain.DirectionLong,
		Size: 0.02, Status: domain.TradeStatusSettled, RealizedPnL: 0.012,
		OpenedAt: closed.Add(-time.Hour), ClosedAt: &closed,
	}))

	rec := f.do(t, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ActiveMarkets int     `json:"active_markets"`
		ActiveAgents  int     `json:"active_agents"`
		WinRate       float64 `json:"win_rate"`
		TotalPnL      float64 `json:"total_pnl"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.ActiveMarkets)
	assert.Equal(t, 1, resp.ActiveAgents)
	assert.InDelta(t, 1.0, resp.WinRate, 1e-9)
	assert.InDelta(t, 0.012, resp.TotalPnL, 1e-9)
}

func TestAuthMiddleware(t *testing.T) {
	f := newTestFixture(t, "secret-key")

	rec := f.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	out := httptest.NewRecorder()
	f.mux.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-API-Key", "wrong")
	out = httptest.NewRecorder()
	f.mux.ServeHTTP(out, req)
	assert.Equal(t, http.StatusUnauthorized, out.Code)
}
