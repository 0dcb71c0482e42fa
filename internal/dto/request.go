// Package dto holds the JSON request and response bodies of the HTTP API
// and the only mappings between them and the model and service types.
// Handlers bind into request types and answer with response types; no
// model struct is serialised directly.
package dto

import (
	"strings"
	"time"

	"github.com/iliyamo/smart-parking/internal/service"
)

type RegisterRequest struct {
	FullName   string  `json:"full_name"`
	Email      string  `json:"email"`
	Username   string  `json:"username"`
	Password   string  `json:"password"`
	Phone      *string `json:"phone_number"`
	Role       string  `json:"role"`
	BadgeID    string  `json:"officer_badge_id"`
	Department string  `json:"department"`
}

func (r RegisterRequest) Registration() service.Registration {
	return service.Registration{
		FullName:   r.FullName,
		Email:      r.Email,
		Username:   r.Username,
		Password:   r.Password,
		Phone:      r.Phone,
		Role:       r.Role,
		BadgeID:    r.BadgeID,
		Department: r.Department,
	}
}

// LoginRequest accepts the login name in any of its three fields.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// Login returns the first non-empty identifier.
func (r LoginRequest) Login() string {
	for _, s := range []string{r.Identifier, r.Email, r.Username} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type OTPRequest struct {
	Contact string `json:"contact"`
}

type OTPVerifyRequest struct {
	Contact string `json:"contact"`
	Code    string `json:"otp"`
}

type ProfileRequest struct {
	FullName string  `json:"full_name"`
	Phone    *string `json:"phone_number"`
}

// ZoneRequest is shared by create and update. Money fields are paise.
type ZoneRequest struct {
	ZoneName               *string  `json:"zone_name"`
	Address                *string  `json:"address"`
	Latitude               *float64 `json:"latitude"`
	Longitude              *float64 `json:"longitude"`
	TotalCapacity          *int     `json:"total_capacity"`
	CurrentOccupancy       *int     `json:"current_occupancy"`
	ContractorLimit        *int     `json:"contractor_limit"`
	ContractorName         *string  `json:"contractor_name"`
	ContractorContact      *string  `json:"contractor_contact"`
	ContractorEmail        *string  `json:"contractor_email"`
	ContractorID           *uint64  `json:"contractor_id"`
	HourlyRateCents        *int64   `json:"hourly_rate_cents"`
	PenaltyPerVehicleCents *int64   `json:"penalty_per_vehicle_cents"`
	OperatingHours         *string  `json:"operating_hours"`
	Status                 *string  `json:"status"`
}

func (r ZoneRequest) Input() service.ZoneInput {
	return service.ZoneInput{
		ZoneName:               r.ZoneName,
		Address:                r.Address,
		Latitude:               r.Latitude,
		Longitude:              r.Longitude,
		TotalCapacity:          r.TotalCapacity,
		CurrentOccupancy:       r.CurrentOccupancy,
		ContractorLimit:        r.ContractorLimit,
		ContractorName:         r.ContractorName,
		ContractorContact:      r.ContractorContact,
		ContractorEmail:        r.ContractorEmail,
		ContractorID:           r.ContractorID,
		HourlyRateCents:        r.HourlyRateCents,
		PenaltyPerVehicleCents: r.PenaltyPerVehicleCents,
		OperatingHours:         r.OperatingHours,
		Status:                 r.Status,
	}
}

type OccupancyRequest struct {
	OccupancyChange   *int `json:"occupancy_change"`
	AbsoluteOccupancy *int `json:"absolute_occupancy"`
}

func (r OccupancyRequest) Update() service.OccupancyUpdate {
	return service.OccupancyUpdate{Change: r.OccupancyChange, Absolute: r.AbsoluteOccupancy}
}

type ViolationRequest struct {
	ZoneID         uint64 `json:"zone_id"`
	ExcessVehicles int    `json:"excess_vehicles"`
	Severity       string `json:"severity"`
	Notes          string `json:"notes"`
}

func (r ViolationRequest) Manual() service.ManualViolation {
	return service.ManualViolation{
		ZoneID:         r.ZoneID,
		ExcessVehicles: r.ExcessVehicles,
		Severity:       strings.ToLower(strings.TrimSpace(r.Severity)),
		Notes:          r.Notes,
	}
}

type ResolveRequest struct {
	Notes string `json:"notes"`
}

type TopUpRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

type VehicleRequest struct {
	LicensePlate string `json:"license_plate"`
	VehicleType  string `json:"vehicle_type"`
	Model        string `json:"model"`
	Color        string `json:"color"`
}

func (r VehicleRequest) Input() service.VehicleInput {
	return service.VehicleInput{
		LicensePlate: r.LicensePlate,
		VehicleType:  r.VehicleType,
		Model:        r.Model,
		Color:        r.Color,
	}
}

type BookingRequest struct {
	ZoneID          uint64    `json:"zone_id"`
	VehicleID       uint64    `json:"vehicle_id"`
	BookingStart    time.Time `json:"booking_start"`
	BookingEnd      time.Time `json:"booking_end"`
	TotalPriceCents int64     `json:"total_price_cents"`
}

func (r BookingRequest) Booking() service.BookingRequest {
	return service.BookingRequest{
		ZoneID:          r.ZoneID,
		VehicleID:       r.VehicleID,
		Start:           r.BookingStart,
		End:             r.BookingEnd,
		TotalPriceCents: r.TotalPriceCents,
	}
}

type PassRequest struct {
	PlanType   string  `json:"plan_type"`
	ZoneID     *uint64 `json:"zone_id"`
	PriceCents int64   `json:"price_cents"`
}

func (r PassRequest) Pass() service.PassRequest {
	return service.PassRequest{
		PassType:   strings.ToLower(strings.TrimSpace(r.PlanType)),
		ZoneID:     r.ZoneID,
		PriceCents: r.PriceCents,
	}
}

type ChatMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type RateRequest struct {
	Rating int `json:"rating"`
}

type EscalateRequest struct {
	Reason string `json:"reason"`
}
