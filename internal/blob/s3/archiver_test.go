package s3blob

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethervenue/venue/internal/domain"
	"github.com/ethervenue/venue/internal/store/memory"
)

type captureWriter struct {
	objects map[string]string
}

func (w *captureWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if w.objects == nil {
		w.objects = make(map[string]string)
	}
	w.objects[path] = string(b)
	return nil
}

func TestArchiverUploadsSettledRecords(t *testing.T) {
	ctx := context.Background()
	markets := memory.NewMarketStore()
	trades := memory.NewTradeStore()
	events := memory.NewReputationEventStore()
	w := &captureWriter{}

	old := time.Now().UTC().Add(-120 * 24 * time.Hour)
	outcome := 1.0
	require.NoError(t, markets.Create(ctx, domain.Market{
		ID: "mkt-old", Type: domain.MarketTypeCryptoPrice, Question: "q",
		Status: domain.MarketStatusSettled, Outcome: &outcome,
		CreatedAt: old, Deadline: old, SettledAt: &old,
	}))
	require.NoError(t, trades.Create(ctx, domain.Trade{
		ID: "trade-old", SignalID: "sig", MarketID: "mkt-old",
		Direction: domain.DirectionLong, Size: 0.01,
		Status: domain.TradeStatusSettled, RealizedPnL: 0.005,
		OpenedAt: old, ClosedAt: &old,
	}))
	require.NoError(t, events.Append(ctx, domain.ReputationEvent{
		AgentID: "a1", MarketID: "mkt-old", Predicted: 0.9, Outcome: 1,
		Delta: 120, CreatedAt: old,
	}))

	a := NewArchiver(w, markets, trades, events, 90*24*time.Hour, slog.Default())
	require.NoError(t, a.Run(ctx))

	require.Len(t, w.objects, 3)
	for path, body := range w.objects {
		assert.True(t, strings.HasPrefix(path, "archive/"), path)
		assert.True(t, strings.HasSuffix(path, ".jsonl"), path)
		assert.True(t, strings.HasSuffix(body, "\n"), "JSONL must be newline terminated")
	}
}

func TestArchiverSkipsRecentRecords(t *testing.T) {
	ctx := context.Background()
	markets := memory.NewMarketStore()
	trades := memory.NewTradeStore()
	events := memory.NewReputationEventStore()
	w := &captureWriter{}

	recent := time.Now().UTC().Add(-24 * time.Hour)
	outcome := 0.0
	require.NoError(t, markets.Create(ctx, domain.Market{
		ID: "mkt-recent", Status: domain.MarketStatusSettled, Outcome: &outcome,
		CreatedAt: recent, Deadline: recent, SettledAt: &recent,
	}))

	a := NewArchiver(w, markets, trades, events, 90*24*time.Hour, slog.Default())
	require.NoError(t, a.Run(ctx))
	assert.Empty(t, w.objects)
}
