package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/model"
)

func TestDaysSince(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, DaysSince(start, start))
	assert.Equal(t, 1, DaysSince(start, start.Add(time.Minute)))
	assert.Equal(t, 1, DaysSince(start, start.Add(24*time.Hour)))
	assert.Equal(t, 2, DaysSince(start, start.Add(24*time.Hour+time.Second)))
	assert.Equal(t, 3, DaysSince(start, start.Add(-60*time.Hour)))
}

func TestCancellationPolicy(t *testing.T) {
	p := CancellationPolicy{WindowDays: 5, RefundDivisor: 6}
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("day 3 is refunded one sixth", func(t *testing.T) {
		now := start.Add(3*24*time.Hour - time.Hour)
		assert.NoError(t, p.Check(model.BookingActive, start, now))
		assert.Equal(t, int64(10000), p.Refund(60000))
	})

	t.Run("day 5 boundary is still inside", func(t *testing.T) {
		assert.NoError(t, p.Check(model.BookingActive, start, start.Add(5*24*time.Hour)))
	})

	t.Run("day 6 is rejected", func(t *testing.T) {
		err := p.Check(model.BookingActive, start, start.Add(5*24*time.Hour+time.Hour))
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("inactive is rejected", func(t *testing.T) {
		err := p.Check(model.BookingCancelled, start, start)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestRefundRounding(t *testing.T) {
	p := CancellationPolicy{WindowDays: 5, RefundDivisor: 6}
	tests := []struct {
		price, want int64
	}{
		{600, 100},
		{50000, 8333}, // 8333.33
		{50003, 8334}, // 8333.83
		{3, 1},        // 0.5 rounds up
		{2, 0},
		{0, 0},
		{-10, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Refund(tt.price), "price %d", tt.price)
	}
}
