package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInsufficientData  = errors.New("insufficient prediction data")
	ErrBreakerTripped    = errors.New("circuit breaker tripped")
	ErrExecutionTimeout  = errors.New("execution timeout")
	ErrExecutionFailed   = errors.New("execution failed")
	ErrMarketClosed      = errors.New("market not open")
	ErrInvalidTransition = errors.New("invalid market status transition")
	ErrLockHeld          = errors.New("lock already held")
)

// RiskError reports a rejected trade authorization together with the first
// failing check. Rejected signals are dropped for the cycle, never retried.
type RiskError struct {
	Reason RejectReason
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("risk rejected: %s", e.Reason)
}

// IsRiskRejected reports whether err is a risk rejection and, if so, returns
// the reason.
func IsRiskRejected(err error) (RejectReason, bool) {
	var re *RiskError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}
