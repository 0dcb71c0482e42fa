package model

import (
	"fmt"
	"time"
)

// Booking and pass statuses.
const (
	BookingActive    = "active"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
	BookingExpired   = "expired"
)

// Pass types.
const (
	PassWeekly  = "weekly"
	PassMonthly = "monthly"
	PassYearly  = "yearly"
)

// Booking reserves a slot in a zone for a time window (`bookings`).
//
// Fields:
//
//	SlotID          – slot assigned at creation, nil for legacy rows.
//	VehicleID       – vehicle owned by UserID.
//	BookingStart    – reference date for the cancellation window.
//	TotalPriceCents – amount debited from the wallet.
//	EntryTime       – set when the booking is scanned at the gate.
type Booking struct {
	ID              uint64
	UserID          uint64
	ZoneID          uint64
	SlotID          *uint64
	VehicleID       uint64
	BookingStart    time.Time
	BookingEnd      time.Time
	BookingType     string
	Status          string
	TotalPriceCents int64
	EntryTime       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Joined read fields.
	ZoneName     string
	SlotNumber   string
	LicensePlate string
}

// Code is the public booking code shown on tickets.
func (b Booking) Code() string { return fmt.Sprintf("BK-%d", b.ID) }

// Pass is a time-bounded subscription (`passes`). A nil ZoneID grants
// access to every zone.
type Pass struct {
	ID         uint64
	UserID     uint64
	ZoneID     *uint64
	PassType   string
	StartDate  time.Time
	EndDate    time.Time
	PriceCents int64
	Status     string
	QRCode     string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	ZoneName string
}

// PassDuration maps a pass type to its validity period.
func PassDuration(passType string) (time.Duration, bool) {
	const day = 24 * time.Hour
	switch passType {
	case PassWeekly:
		return 7 * day, true
	case PassMonthly:
		return 30 * day, true
	case PassYearly:
		return 365 * day, true
	}
	return 0, false
}

// Vehicle belongs to one user; license plates are globally unique.
type Vehicle struct {
	ID           uint64
	UserID       uint64
	LicensePlate string
	VehicleType  string
	Model        string
	Color        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
