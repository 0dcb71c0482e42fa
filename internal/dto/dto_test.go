package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/service"
)

func TestFromZoneDerivedFields(t *testing.T) {
	z := &model.Zone{ID: 1, ZoneName: "Saket", TotalCapacity: 200, CurrentOccupancy: 150, ContractorLimit: 120,
		HourlyRateCents: 4050}
	r := FromZone(z)
	assert.Equal(t, 75.0, r.OccupancyPercentage)
	assert.Equal(t, model.SeverityCritical, r.ViolationStatus)
	assert.Equal(t, 30, r.ExcessVehicles)
	assert.Equal(t, 50, r.AvailableSpaces)
	assert.Equal(t, "40.50", r.HourlyRate)

	z.CurrentOccupancy = 110
	assert.Equal(t, model.SeverityWarning, FromZone(z).ViolationStatus)
	z.CurrentOccupancy = 100
	assert.Equal(t, model.StatusNormal, FromZone(z).ViolationStatus)
}

func TestFromUserOmitsHash(t *testing.T) {
	u := &model.User{ID: 2, Email: "a@b.in", PasswordHash: "$2a$10$secret", Role: model.RoleViewer}
	b, err := json.Marshal(FromUser(u))
	require.NoError(t, err)
	assert.NotContains(t, string(b), "secret")
	assert.NotContains(t, string(b), "password")
}

func TestLoginIdentifier(t *testing.T) {
	assert.Equal(t, "raj", LoginRequest{Username: " raj "}.Login())
	assert.Equal(t, "r@x.in", LoginRequest{Email: "r@x.in", Username: "raj"}.Login())
	assert.Equal(t, "id", LoginRequest{Identifier: "id", Email: "r@x.in"}.Login())
	assert.Empty(t, LoginRequest{}.Login())
}

func TestFromBookingCancel(t *testing.T) {
	b := &model.Booking{ID: 9, Status: model.BookingCancelled, TotalPriceCents: 60000}
	r := FromBookingCancel(b, &service.CancelResult{RefundCents: 10000,
		Transaction: &model.WalletTransaction{ID: 4, Type: model.TxRefund, AmountCents: 10000}})
	require.NotNil(t, r.Booking)
	assert.Equal(t, "BK-9", r.Booking.Code)
	assert.Nil(t, r.Pass)
	assert.Equal(t, "100.00", r.Refund)
	assert.Equal(t, "100.00", r.Transaction.Amount)
}

func TestEnvelopeShape(t *testing.T) {
	b, err := json.Marshal(OK(map[string]int{"n": 1}, ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{"n":1}}`, string(b))

	b, err = json.Marshal(Fail("nope"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"nope"}`, string(b))
}

func TestFromChatResultNeverNullReplies(t *testing.T) {
	r := FromChatResult(&service.ChatResult{SessionID: "s", Message: model.ChatMessage{ID: 3, CreatedAt: time.Unix(0, 0)}})
	assert.NotNil(t, r.QuickReplies)
	assert.Equal(t, uint64(3), r.MessageID)
}
