// Package queue carries parking domain events over RabbitMQ. Services
// publish after their transaction commits; the consumer persists every
// event into audit_logs.
package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	ViolationOpened   = "violation.opened"
	ViolationUpdated  = "violation.updated"
	ViolationResolved = "violation.resolved"
	BookingCreated    = "booking.created"
	BookingCancelled  = "booking.cancelled"
	PassPurchased     = "pass.purchased"
	PassCancelled     = "pass.cancelled"
	WalletToppedUp    = "wallet.topped_up"
)

// Event is the envelope written to the queue.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Entity     string          `json:"entity"`
	EntityID   uint64          `json:"entity_id"`
	UserID     *uint64         `json:"user_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewEvent stamps an id and time and marshals data into the envelope.
func NewEvent(typ, entity string, entityID uint64, userID *uint64, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Entity:     entity,
		EntityID:   entityID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}, nil
}

// ViolationData is the payload of violation.* events.
type ViolationData struct {
	ZoneID             uint64 `json:"zone_id"`
	ZoneName           string `json:"zone_name"`
	Occupancy          int    `json:"occupancy"`
	ContractorLimit    int    `json:"contractor_limit"`
	ExcessVehicles     int    `json:"excess_vehicles"`
	PenaltyAmountCents int64  `json:"penalty_amount_cents"`
	Severity           string `json:"severity"`
}

// MoneyData is the payload of booking, pass and wallet events.
type MoneyData struct {
	AmountCents int64  `json:"amount_cents"`
	ZoneID      uint64 `json:"zone_id,omitempty"`
	Reference   string `json:"reference,omitempty"`
	Detail      string `json:"detail,omitempty"`
}
