package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZoneDerivedFields(t *testing.T) {
	tests := []struct {
		name      string
		occ       int
		wantPct   float64
		wantState string
		wantExc   int
	}{
		{"over limit", 95, 95, SeverityCritical, 15},
		{"just above 85 percent of limit", 69, 69, SeverityWarning, 0},
		{"at 85 percent of limit", 68, 68, StatusNormal, 0},
		{"at limit", 80, 80, SeverityWarning, 0},
		{"empty", 0, 0, StatusNormal, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z := Zone{TotalCapacity: 100, ContractorLimit: 80, CurrentOccupancy: tt.occ}
			assert.InDelta(t, tt.wantPct, z.OccupancyPercentage(), 1e-9)
			assert.Equal(t, tt.wantState, z.ViolationStatus())
			assert.Equal(t, tt.wantExc, z.ExcessVehicles())
		})
	}
}

func TestOccupancyPercentageZeroCapacity(t *testing.T) {
	z := Zone{TotalCapacity: 0, CurrentOccupancy: 0}
	assert.Equal(t, 0.0, z.OccupancyPercentage())
}

func TestSeverityFor(t *testing.T) {
	// 80 * 0.3 = 24
	assert.Equal(t, SeverityWarning, SeverityFor(15, 80))
	assert.Equal(t, SeverityWarning, SeverityFor(24, 80))
	assert.Equal(t, SeverityCritical, SeverityFor(25, 80))
}

func TestPassDuration(t *testing.T) {
	d, ok := PassDuration(PassMonthly)
	assert.True(t, ok)
	assert.Equal(t, 30*24.0, d.Hours())

	_, ok = PassDuration("daily")
	assert.False(t, ok)
}

func TestWalletTransactionSignedAmount(t *testing.T) {
	assert.Equal(t, int64(-300), WalletTransaction{Type: TxDebit, AmountCents: 300}.SignedAmount())
	assert.Equal(t, int64(300), WalletTransaction{Type: TxRefund, AmountCents: 300}.SignedAmount())
}
