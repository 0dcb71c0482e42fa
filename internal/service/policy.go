package service

import (
	"fmt"
	"math"
	"time"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/model"
)

// CancellationPolicy decides whether a booking or pass may be cancelled
// and how much is refunded. It is the same for both.
type CancellationPolicy struct {
	WindowDays    int   // eligible while started days <= WindowDays
	RefundDivisor int64 // refund = price / RefundDivisor
}

// DaysSince counts started days between start and now in either
// direction: 0 at the same instant, 1 for anything up to 24h.
func DaysSince(start, now time.Time) int {
	d := now.Sub(start)
	if d < 0 {
		d = -d
	}
	return int(math.Ceil(d.Hours() / 24))
}

// Check returns a validation error when the item cannot be cancelled.
func (p CancellationPolicy) Check(status string, start, now time.Time) error {
	if status != model.BookingActive {
		return apperr.Validation("Only active items can be cancelled")
	}
	if DaysSince(start, now) > p.WindowDays {
		return apperr.Validation(fmt.Sprintf("Cancellation period (%d days) has expired.", p.WindowDays))
	}
	return nil
}

// Refund is price/RefundDivisor rounded half-up to the paisa. The
// amount does not depend on how much of the window has elapsed.
func (p CancellationPolicy) Refund(price int64) int64 {
	div := p.RefundDivisor
	if div < 1 {
		div = 1
	}
	if price <= 0 {
		return 0
	}
	return (2*price + div) / (2 * div)
}
