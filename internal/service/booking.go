package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/config"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/queue"
	"github.com/iliyamo/smart-parking/internal/repository"
	"github.com/iliyamo/smart-parking/internal/utils"
)

// BookingService runs the booking and pass lifecycle on top of the
// ledger. Payment and row creation commit together.
type BookingService struct {
	db       *sql.DB
	bookings *repository.BookingRepo
	passes   *repository.PassRepo
	zones    *repository.ZoneRepo
	vehicles *repository.VehicleRepo
	ledger   *Ledger
	policy   config.PolicyConfig
	cancel   CancellationPolicy
	events   queue.Publisher
	log      *zap.Logger
	now      func() time.Time
}

func NewBookingService(db *sql.DB, bookings *repository.BookingRepo, passes *repository.PassRepo,
	zones *repository.ZoneRepo, vehicles *repository.VehicleRepo, ledger *Ledger,
	policy config.PolicyConfig, events queue.Publisher, log *zap.Logger) *BookingService {
	return &BookingService{
		db:       db,
		bookings: bookings,
		passes:   passes,
		zones:    zones,
		vehicles: vehicles,
		ledger:   ledger,
		policy:   policy,
		cancel:   CancellationPolicy{WindowDays: policy.CancellationWindowDays, RefundDivisor: policy.RefundDivisor},
		events:   events,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// BookingRequest is the input of CreateBooking. TotalPriceCents, when
// positive, overrides the computed price.
type BookingRequest struct {
	ZoneID          uint64
	VehicleID       uint64
	Start           time.Time
	End             time.Time
	TotalPriceCents int64
}

// BookingPrice is ceil(hours) * hourly rate.
func BookingPrice(start, end time.Time, hourlyRate int64) int64 {
	hours := int64(math.Ceil(end.Sub(start).Hours()))
	if hours < 1 {
		hours = 1
	}
	return hours * hourlyRate
}

func (s *BookingService) hourlyRate(z *model.Zone) int64 {
	if z.HourlyRateCents > 0 {
		return z.HourlyRateCents
	}
	return s.policy.DefaultHourlyRate
}

// CreateBooking debits the wallet and inserts the booking in one
// transaction.
func (s *BookingService) CreateBooking(ctx context.Context, userID uint64, req BookingRequest) (*model.Booking, error) {
	if req.ZoneID == 0 || req.VehicleID == 0 {
		return nil, apperr.Validation("zone_id and vehicle_id are required")
	}
	if req.Start.IsZero() || req.End.IsZero() || !req.End.After(req.Start) {
		return nil, apperr.Validation("End time must be after start time")
	}
	if req.TotalPriceCents < 0 {
		return nil, apperr.Validation("Total price cannot be negative")
	}

	if _, err := s.vehicles.GetForUser(ctx, req.VehicleID, userID); err != nil {
		if errors.Is(err, repository.ErrVehicleNotFound) {
			return nil, apperr.Validation("Invalid vehicle selected")
		}
		return nil, apperr.Internal("could not load vehicle", err)
	}
	z, err := s.zones.GetByID(ctx, req.ZoneID)
	if errors.Is(err, repository.ErrZoneNotFound) {
		return nil, apperr.NotFound("Parking zone not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load zone", err)
	}
	if z.Status != model.ZoneStatusActive {
		return nil, apperr.Validation("Parking zone is not accepting bookings")
	}

	price := req.TotalPriceCents
	if price == 0 {
		price = BookingPrice(req.Start, req.End, s.hourlyRate(z))
	}

	b := &model.Booking{
		UserID:          userID,
		ZoneID:          z.ID,
		VehicleID:       req.VehicleID,
		BookingStart:    req.Start.UTC(),
		BookingEnd:      req.End.UTC(),
		BookingType:     "hourly",
		Status:          model.BookingActive,
		TotalPriceCents: price,
		ZoneName:        z.ZoneName,
	}
	if req.End.Sub(req.Start) >= 24*time.Hour {
		b.BookingType = "daily"
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		slot, err := s.zones.FirstSlotTx(ctx, tx, z.ID)
		if err != nil {
			return apperr.Internal("could not assign slot", err)
		}
		b.SlotID, b.SlotNumber = &slot.ID, slot.SlotNumber

		if err := s.bookings.CreateTx(ctx, tx, b); err != nil {
			return apperr.Internal("could not create booking", err)
		}
		_, err = s.ledger.DebitTx(ctx, tx, userID, price, fmt.Sprintf("Booking %s at %s", b.Code(), z.ZoneName))
		return err
	})
	if err != nil {
		return nil, err
	}
	b.CreatedAt = s.now()

	queue.Emit(s.events, s.log, queue.BookingCreated, "booking", b.ID, &userID,
		queue.MoneyData{AmountCents: price, ZoneID: z.ID, Reference: b.Code()})
	return b, nil
}

// PassRequest is the input of PurchasePass. PriceCents, when positive,
// overrides the configured plan price.
type PassRequest struct {
	PassType   string
	ZoneID     *uint64
	PriceCents int64
}

// PurchasePass debits the wallet and inserts the pass in one transaction.
func (s *BookingService) PurchasePass(ctx context.Context, userID uint64, req PassRequest) (*model.Pass, error) {
	validity, ok := model.PassDuration(req.PassType)
	if !ok {
		return nil, apperr.Validation("Invalid plan type")
	}
	price := req.PriceCents
	if price < 0 {
		return nil, apperr.Validation("Price cannot be negative")
	}
	if price == 0 {
		price = s.policy.PassPrices[req.PassType]
	}
	if price <= 0 {
		return nil, apperr.Validation("No price configured for this plan")
	}

	var zoneName string
	if req.ZoneID != nil {
		z, err := s.zones.GetByID(ctx, *req.ZoneID)
		if errors.Is(err, repository.ErrZoneNotFound) {
			return nil, apperr.NotFound("Parking zone not found")
		}
		if err != nil {
			return nil, apperr.Internal("could not load zone", err)
		}
		zoneName = z.ZoneName
	}

	start := s.now()
	p := &model.Pass{
		UserID:     userID,
		ZoneID:     req.ZoneID,
		PassType:   req.PassType,
		StartDate:  start,
		EndDate:    start.Add(validity),
		PriceCents: price,
		Status:     model.BookingActive,
		ZoneName:   zoneName,
	}

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := s.ledger.DebitTx(ctx, tx, userID, price, fmt.Sprintf("%s pass purchase", req.PassType)); err != nil {
			return err
		}
		// QR codes are random; retry a clash a couple of times.
		for attempt := 0; ; attempt++ {
			qr, err := utils.NewPassQRCode()
			if err != nil {
				return apperr.Internal("could not generate QR code", err)
			}
			p.QRCode = qr
			err = s.passes.CreateTx(ctx, tx, p)
			if err == nil {
				return nil
			}
			if !errors.Is(err, repository.ErrConflict) || attempt >= 2 {
				return apperr.Internal("could not create pass", err)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	p.CreatedAt = start

	queue.Emit(s.events, s.log, queue.PassPurchased, "pass", p.ID, &userID,
		queue.MoneyData{AmountCents: price, Reference: p.QRCode, Detail: p.PassType})
	return p, nil
}

// CancelResult reports a successful cancellation.
type CancelResult struct {
	RefundCents int64
	Transaction *model.WalletTransaction
}

// CancelBooking refunds price/6 and marks the booking cancelled when
// the policy allows it.
func (s *BookingService) CancelBooking(ctx context.Context, userID, bookingID uint64) (*model.Booking, *CancelResult, error) {
	var (
		b   *model.Booking
		out CancelResult
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		b, err = s.bookings.GetForUpdateTx(ctx, tx, bookingID, userID)
		if errors.Is(err, repository.ErrBookingNotFound) {
			return apperr.NotFound("Booking not found")
		}
		if err != nil {
			return apperr.Internal("could not load booking", err)
		}
		if err := s.cancel.Check(b.Status, b.BookingStart, s.now()); err != nil {
			return err
		}
		if err := s.bookings.SetStatusTx(ctx, tx, b.ID, model.BookingCancelled); err != nil {
			return apperr.Internal("could not cancel booking", err)
		}
		b.Status = model.BookingCancelled

		out.RefundCents = s.cancel.Refund(b.TotalPriceCents)
		if out.RefundCents > 0 {
			out.Transaction, err = s.ledger.RefundTx(ctx, tx, userID, out.RefundCents,
				fmt.Sprintf("1/%d Refund for Booking #%d", s.cancel.RefundDivisor, b.ID))
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	queue.Emit(s.events, s.log, queue.BookingCancelled, "booking", b.ID, &userID,
		queue.MoneyData{AmountCents: out.RefundCents, ZoneID: b.ZoneID, Reference: b.Code()})
	return b, &out, nil
}

// CancelPass applies the same policy to a pass.
func (s *BookingService) CancelPass(ctx context.Context, userID, passID uint64) (*model.Pass, *CancelResult, error) {
	var (
		p   *model.Pass
		out CancelResult
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		p, err = s.passes.GetForUpdateTx(ctx, tx, passID, userID)
		if errors.Is(err, repository.ErrPassNotFound) {
			return apperr.NotFound("Subscription not found")
		}
		if err != nil {
			return apperr.Internal("could not load subscription", err)
		}
		if err := s.cancel.Check(p.Status, p.StartDate, s.now()); err != nil {
			return err
		}
		if err := s.passes.SetStatusTx(ctx, tx, p.ID, model.BookingCancelled); err != nil {
			return apperr.Internal("could not cancel subscription", err)
		}
		p.Status = model.BookingCancelled

		out.RefundCents = s.cancel.Refund(p.PriceCents)
		if out.RefundCents > 0 {
			out.Transaction, err = s.ledger.RefundTx(ctx, tx, userID, out.RefundCents,
				fmt.Sprintf("1/%d Refund for Subscription #%d", s.cancel.RefundDivisor, p.ID))
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	queue.Emit(s.events, s.log, queue.PassCancelled, "pass", p.ID, &userID,
		queue.MoneyData{AmountCents: out.RefundCents, Reference: p.QRCode})
	return p, &out, nil
}

// ScanBooking records gate entry. The booking stays active.
func (s *BookingService) ScanBooking(ctx context.Context, userID, bookingID uint64) (*model.Booking, error) {
	b, err := s.bookings.GetForUser(ctx, bookingID, userID)
	if errors.Is(err, repository.ErrBookingNotFound) {
		return nil, apperr.NotFound("Booking not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load booking", err)
	}
	if b.Status == model.BookingCancelled || b.Status == model.BookingExpired {
		return nil, apperr.Validation("Booking is not valid for scanning")
	}
	at := s.now()
	if err := s.bookings.MarkEntry(ctx, b.ID, at); err != nil {
		return nil, apperr.Internal("could not record entry", err)
	}
	b.EntryTime = &at
	return b, nil
}

// ScanPass grants access while the pass is active and unexpired. An
// overdue pass is marked expired on the spot.
func (s *BookingService) ScanPass(ctx context.Context, userID, passID uint64) (*model.Pass, error) {
	p, err := s.passes.GetForUser(ctx, passID, userID)
	if errors.Is(err, repository.ErrPassNotFound) {
		return nil, apperr.NotFound("Subscription not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load subscription", err)
	}
	if p.Status != model.BookingActive {
		return nil, apperr.Validation("Subscription is not active")
	}
	if s.now().After(p.EndDate) {
		if err := s.passes.SetStatus(ctx, p.ID, model.BookingExpired); err != nil {
			return nil, apperr.Internal("could not expire subscription", err)
		}
		return nil, apperr.Validation("Subscription has expired")
	}
	return p, nil
}

func (s *BookingService) MyBookings(ctx context.Context, userID uint64) ([]model.Booking, error) {
	out, err := s.bookings.ListByUser(ctx, userID)
	return out, internal("could not load bookings", err)
}

func (s *BookingService) MyPasses(ctx context.Context, userID uint64) ([]model.Pass, error) {
	out, err := s.passes.ListByUser(ctx, userID)
	return out, internal("could not load subscriptions", err)
}

// Availability describes a zone for a requested window.
type Availability struct {
	Zone           model.Zone
	AvailableSlots int
	IsAvailable    bool
	EstimatedCents int64
}

// Availability subtracts current occupancy and overlapping active
// bookings from capacity. Without a window it uses the next hour.
func (s *BookingService) Availability(ctx context.Context, zoneID uint64, start, end time.Time) (*Availability, error) {
	z, err := s.zones.GetByID(ctx, zoneID)
	if errors.Is(err, repository.ErrZoneNotFound) {
		return nil, apperr.NotFound("Zone not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load zone", err)
	}
	if start.IsZero() {
		start = s.now()
	}
	if end.IsZero() || !end.After(start) {
		end = start.Add(time.Hour)
	}
	booked, err := s.bookings.CountOverlapping(ctx, zoneID, start, end)
	if err != nil {
		return nil, apperr.Internal("could not count bookings", err)
	}
	free := z.TotalCapacity - z.CurrentOccupancy - booked
	if free < 0 {
		free = 0
	}
	return &Availability{
		Zone:           *z,
		AvailableSlots: free,
		IsAvailable:    free > 0 && z.Status == model.ZoneStatusActive,
		EstimatedCents: BookingPrice(start, end, s.hourlyRate(z)),
	}, nil
}

// ExpireSummary is what one expiry run changed.
type ExpireSummary struct {
	BookingsCompleted int64
	BookingsExpired   int64
	PassesExpired     int64
}

// ExpireOverdue closes bookings whose window ended and passes past their
// end date.
func (s *BookingService) ExpireOverdue(ctx context.Context) (ExpireSummary, error) {
	var sum ExpireSummary
	now := s.now()
	var err error
	sum.BookingsCompleted, sum.BookingsExpired, err = s.bookings.CloseEnded(ctx, now)
	if err != nil {
		return sum, fmt.Errorf("close bookings: %w", err)
	}
	sum.PassesExpired, err = s.passes.ExpireEnded(ctx, now)
	if err != nil {
		return sum, fmt.Errorf("expire passes: %w", err)
	}
	return sum, nil
}
