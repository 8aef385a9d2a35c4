package domain

import "time"

// TradeStatus tracks a trade through authorization and execution. Terminal
// states are rejected and settled.
type TradeStatus string

const (
	TradeStatusProposed TradeStatus = "proposed"
	TradeStatusApproved TradeStatus = "approved"
	TradeStatusRejected TradeStatus = "rejected"
	TradeStatusExecuted TradeStatus = "executed"
	TradeStatusSettled  TradeStatus = "settled"
)

// RejectReason identifies the first failing risk check for a rejected trade.
type RejectReason string

const (
	RejectExposure         RejectReason = "max-exposure"
	RejectCorrelation      RejectReason = "correlation-limit"
	RejectPositionCount    RejectReason = "max-positions"
	RejectBreakerTripped   RejectReason = "circuit-breaker"
	RejectExecutionTimeout RejectReason = "execution-timeout"
	RejectExecutionFailed  RejectReason = "execution-failed"
)

// Trade is a risk-authorized order derived from a Signal. Stop-loss and
// take-profit levels are fixed at authorization time, before the trade is
// handed to the execution bridge.
type Trade struct {
	ID          string // UUID
	SignalID    string
	MarketID    string
	Asset       string
	Direction   Direction
	Size        float64 // position size fraction of portfolio
	Status      TradeStatus
	Reason      RejectReason // set only when Status == rejected
	StopLoss    float64      // fraction, e.g. 0.015
	TakeProfit  float64      // fraction, e.g. 0.03
	FillPrice   float64
	RealizedPnL float64 // portfolio fraction, set on settlement
	OpenedAt    time.Time
	ClosedAt    *time.Time
}

// IsOpen reports whether the trade still contributes to portfolio exposure.
func (t Trade) IsOpen() bool {
	return t.Status == TradeStatusApproved || t.Status == TradeStatusExecuted
}
