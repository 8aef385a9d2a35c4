// Package bridge talks to the external execution layer. The venue itself
// never holds exchange credentials; authorized trades are handed to the
// bridge, which owns order routing and reports fills and market settlements
// back.
package bridge

import (
	"context"
	"time"

	"github.com/ethervenue/venue/internal/domain"
)

// Order is an authorized trade submitted for execution.
type Order struct {
	TradeID    string           `json:"trade_id"`
	MarketID   string           `json:"market_id"`
	Asset      string           `json:"asset"`
	Direction  domain.Direction `json:"direction"`
	Size       float64          `json:"size"`
	StopLoss   float64          `json:"stop_loss"`
	TakeProfit float64          `json:"take_profit"`
}

// Fill is the execution layer's acknowledgement of an order.
type Fill struct {
	TradeID   string    `json:"trade_id"`
	FillPrice float64   `json:"fill_price"`
	FilledAt  time.Time `json:"filled_at"`
}

// Settlement reports a resolved market together with the realized P&L of the
// venue's trade on it, if any.
type Settlement struct {
	MarketID    string    `json:"market_id"`
	Outcome     float64   `json:"outcome"` // 0 or 1
	TradeID     string    `json:"trade_id,omitempty"`
	RealizedPnL float64   `json:"realized_pnl"`
	SettledAt   time.Time `json:"settled_at"`
}

// Bridge is the execution layer interface. Submit must respect the context
// deadline; a timeout surfaces as domain.ErrExecutionTimeout and the trade is
// treated as not placed.
type Bridge interface {
	Submit(ctx context.Context, order Order) (Fill, error)
	Settlements(ctx context.Context) ([]Settlement, error)
}
