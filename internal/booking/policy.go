package booking

import (
	"fmt"
	"time"
)

const (
	DefaultFullRefundWindow     = time.Hour
	DefaultLateCancelPenaltyPct = 50
)

// Policy holds the cancellation economics.
type Policy struct {
	FullRefundWindow     time.Duration
	LateCancelPenaltyPct int64
}

func DefaultPolicy() Policy {
	return Policy{
		FullRefundWindow:     DefaultFullRefundWindow,
		LateCancelPenaltyPct: DefaultLateCancelPenaltyPct,
	}
}

func (p Policy) Validate() error {
	if p.FullRefundWindow < 0 {
		return fmt.Errorf("full refund window must not be negative")
	}
	if p.LateCancelPenaltyPct < 0 || p.LateCancelPenaltyPct > 100 {
		return fmt.Errorf("late cancel penalty must be between 0 and 100, got %d", p.LateCancelPenaltyPct)
	}
	return nil
}

// Split computes how a user cancellation divides the fee. It is a two-tier
// step: cancelling at least FullRefundWindow before start refunds everything,
// anything later forfeits LateCancelPenaltyPct (truncated) to the counselor.
func (p Policy) Split(fee Amount, start, now time.Time) (refund, penalty Amount) {
	if start.Sub(now) >= p.FullRefundWindow {
		return fee, 0
	}
	// Same as fee*pct/100 but without overflowing for large fees.
	pct := Amount(p.LateCancelPenaltyPct)
	penalty = fee/100*pct + fee%100*pct/100
	return fee - penalty, penalty
}
