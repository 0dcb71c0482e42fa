package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Run("Wrapped kind survives fmt.Errorf", func(t *testing.T) {
		err := fmt.Errorf("debit: %w", InsufficientFunds("Insufficient wallet balance"))
		assert.Equal(t, KindInsufficientFunds, KindOf(err))
		assert.True(t, Is(err, KindInsufficientFunds))
		assert.Equal(t, "Insufficient wallet balance", Message(err))
	})

	t.Run("Plain errors are internal", func(t *testing.T) {
		err := errors.New("boom")
		assert.Equal(t, KindInternal, KindOf(err))
		assert.Equal(t, "internal server error", Message(err))
	})

	t.Run("Internal keeps cause", func(t *testing.T) {
		cause := errors.New("deadlock")
		err := Internal("failed to update occupancy", cause)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "failed to update occupancy", Message(err))
	})
}

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindAuthentication, http.StatusUnauthorized},
		{KindAuthorization, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindInsufficientFunds, http.StatusPaymentRequired},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Status())
		})
	}
}
