package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/repository"
)

// Delhi NCR bounding box accepted for new zones.
const (
	MinLatitude  = 28.40
	MaxLatitude  = 28.90
	MinLongitude = 76.80
	MaxLongitude = 77.40

	MaxZoneCapacity = 5000
)

// Actor is the authenticated caller as seen by services.
type Actor struct {
	UserID uint64
	Role   string
}

// ZoneInput carries zone fields for create and update. Nil fields are
// left unchanged on update.
type ZoneInput struct {
	ZoneName               *string
	Address                *string
	Latitude               *float64
	Longitude              *float64
	TotalCapacity          *int
	CurrentOccupancy       *int // create only
	ContractorLimit        *int
	ContractorName         *string
	ContractorContact      *string
	ContractorEmail        *string
	ContractorID           *uint64
	HourlyRateCents        *int64
	PenaltyPerVehicleCents *int64
	OperatingHours         *string
	Status                 *string
}

// ZoneService handles zone administration. Occupancy changes go
// through the Reconciler instead; edits that move the contractor limit
// or penalty rate re-settle the open violation through it.
type ZoneService struct {
	db         *sql.DB
	zones      *repository.ZoneRepo
	reconciler *Reconciler
	defPenalty int64
	defRate    int64
	log        *zap.Logger
}

func NewZoneService(db *sql.DB, zones *repository.ZoneRepo, reconciler *Reconciler,
	defaultPenalty, defaultRate int64, log *zap.Logger) *ZoneService {
	return &ZoneService{
		db:         db,
		zones:      zones,
		reconciler: reconciler,
		defPenalty: defaultPenalty,
		defRate:    defaultRate,
		log:        log,
	}
}

// List applies the filter. A contractor asking for scope "owned" only
// sees its own zones.
func (s *ZoneService) List(ctx context.Context, actor *Actor, scope string, f model.ZoneFilter) ([]model.Zone, error) {
	if actor != nil && actor.Role == model.RoleContractor && scope == "owned" {
		id := actor.UserID
		f.ContractorID = &id
	}
	if f.Status != "" && !validZoneStatus(f.Status) {
		return nil, apperr.Validation("Invalid zone status")
	}
	out, err := s.zones.List(ctx, f)
	return out, internal("could not load zones", err)
}

func (s *ZoneService) Get(ctx context.Context, id uint64) (*model.Zone, error) {
	z, err := s.zones.GetByID(ctx, id)
	if errors.Is(err, repository.ErrZoneNotFound) {
		return nil, apperr.NotFound("Parking zone not found")
	}
	return z, internal("could not load zone", err)
}

// Create validates and inserts a zone. A contractor creating a zone
// becomes its owner.
func (s *ZoneService) Create(ctx context.Context, actor Actor, in ZoneInput) (*model.Zone, error) {
	z := &model.Zone{
		Status:                 model.ZoneStatusActive,
		HourlyRateCents:        s.defRate,
		PenaltyPerVehicleCents: s.defPenalty,
		OperatingHours:         "24/7",
	}
	if in.ZoneName == nil || strings.TrimSpace(*in.ZoneName) == "" {
		return nil, apperr.Validation("Zone name is required")
	}
	if in.Address == nil || strings.TrimSpace(*in.Address) == "" {
		return nil, apperr.Validation("Address is required")
	}
	if in.Latitude == nil || in.Longitude == nil {
		return nil, apperr.Validation("Latitude and longitude are required")
	}
	if in.TotalCapacity == nil || in.ContractorLimit == nil {
		return nil, apperr.Validation("Total capacity and contractor limit are required")
	}
	if in.ContractorName == nil || strings.TrimSpace(*in.ContractorName) == "" {
		return nil, apperr.Validation("Contractor name is required")
	}
	if err := InsideDelhiNCR(*in.Latitude, *in.Longitude); err != nil {
		return nil, err
	}
	applyZoneInput(z, in)
	if in.CurrentOccupancy != nil {
		z.CurrentOccupancy = *in.CurrentOccupancy
	}
	if actor.Role == model.RoleContractor {
		id := actor.UserID
		z.ContractorID = &id
	}
	if err := validateZone(z); err != nil {
		return nil, err
	}
	if err := s.zones.Create(ctx, z); err != nil {
		return nil, apperr.Internal("could not create zone", err)
	}
	s.log.Info("zone created", zap.Uint64("zone_id", z.ID), zap.Uint64("by", actor.UserID))
	return z, nil
}

// Update edits a zone under its row lock, so capacity and limit checks
// see the occupancy the reconciler last committed. Contractors may only
// edit zones they own and cannot reassign ownership. Occupancy is never
// changed here. A new contractor limit or penalty rate is applied to
// the open violation in the same transaction.
func (s *ZoneService) Update(ctx context.Context, actor Actor, id uint64, in ZoneInput) (*model.Zone, error) {
	if in.CurrentOccupancy != nil {
		return nil, apperr.Validation("Use the occupancy endpoint to change occupancy")
	}
	if actor.Role == model.RoleContractor {
		in.ContractorID = nil
	}

	var (
		z       *model.Zone
		settled *ReconcileResult
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		cur, err := s.zones.GetForUpdateTx(ctx, tx, id)
		if errors.Is(err, repository.ErrZoneNotFound) {
			return apperr.NotFound("Parking zone not found")
		}
		if err != nil {
			return apperr.Internal("could not load zone", err)
		}
		if actor.Role == model.RoleContractor && (cur.ContractorID == nil || *cur.ContractorID != actor.UserID) {
			return apperr.NotFound("Parking zone not found")
		}

		lat, lng := cur.Latitude, cur.Longitude
		limit, rate := cur.ContractorLimit, s.reconciler.penaltyRate(cur)
		applyZoneInput(cur, in)
		if cur.Latitude != lat || cur.Longitude != lng {
			if err := InsideDelhiNCR(cur.Latitude, cur.Longitude); err != nil {
				return err
			}
		}
		if err := validateZone(cur); err != nil {
			return err
		}
		if err := s.zones.UpdateTx(ctx, tx, cur); err != nil {
			return apperr.Internal("could not update zone", err)
		}
		z = cur

		if cur.ContractorLimit == limit && s.reconciler.penaltyRate(cur) == rate {
			return nil
		}
		open, err := s.reconciler.lockOpenTx(ctx, tx, cur.ID)
		if err != nil {
			return err
		}
		res, err := s.reconciler.settleTx(ctx, tx, cur, open)
		if err != nil {
			return err
		}
		settled = &res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if settled != nil {
		s.reconciler.emit(settled)
	}
	s.log.Info("zone updated", zap.Uint64("zone_id", z.ID), zap.Uint64("by", actor.UserID))
	return z, nil
}

func (s *ZoneService) Delete(ctx context.Context, id uint64) error {
	err := s.zones.Delete(ctx, id)
	if errors.Is(err, repository.ErrZoneNotFound) {
		return apperr.NotFound("Parking zone not found")
	}
	return internal("could not delete zone", err)
}

func (s *ZoneService) Slots(ctx context.Context, id uint64) ([]model.Slot, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	out, err := s.zones.Slots(ctx, id)
	return out, internal("could not load slots", err)
}

func (s *ZoneService) Stats(ctx context.Context) (model.ZoneStats, error) {
	st, err := s.zones.Stats(ctx)
	return st, internal("could not load zone stats", err)
}

// InsideDelhiNCR rejects coordinates outside the service area.
func InsideDelhiNCR(lat, lng float64) error {
	if lat < MinLatitude || lat > MaxLatitude || lng < MinLongitude || lng > MaxLongitude {
		return apperr.Validation("Parking zone must be located within Delhi NCR boundaries.")
	}
	return nil
}

func validateZone(z *model.Zone) error {
	switch {
	case z.TotalCapacity < 1 || z.TotalCapacity > MaxZoneCapacity:
		return apperr.Validation("Total capacity must be between 1 and 5000")
	case z.ContractorLimit < 1 || z.ContractorLimit > z.TotalCapacity:
		return apperr.Validation("Contractor limit must be between 1 and total capacity")
	case z.CurrentOccupancy < 0:
		return apperr.Validation("Occupancy cannot be negative")
	case z.CurrentOccupancy > z.TotalCapacity:
		return apperr.Validation("Occupancy cannot exceed total capacity")
	case !validZoneStatus(z.Status):
		return apperr.Validation("Invalid zone status")
	case z.HourlyRateCents < 0 || z.PenaltyPerVehicleCents < 0:
		return apperr.Validation("Rates cannot be negative")
	}
	return nil
}

func validZoneStatus(s string) bool {
	switch s {
	case model.ZoneStatusActive, model.ZoneStatusInactive, model.ZoneStatusMaintenance:
		return true
	}
	return false
}

func applyZoneInput(z *model.Zone, in ZoneInput) {
	if in.ZoneName != nil {
		z.ZoneName = strings.TrimSpace(*in.ZoneName)
	}
	if in.Address != nil {
		z.Address = strings.TrimSpace(*in.Address)
	}
	if in.Latitude != nil {
		z.Latitude = *in.Latitude
	}
	if in.Longitude != nil {
		z.Longitude = *in.Longitude
	}
	if in.TotalCapacity != nil {
		z.TotalCapacity = *in.TotalCapacity
	}
	if in.ContractorLimit != nil {
		z.ContractorLimit = *in.ContractorLimit
	}
	if in.ContractorName != nil {
		z.ContractorName = strings.TrimSpace(*in.ContractorName)
	}
	if in.ContractorContact != nil {
		z.ContractorContact = in.ContractorContact
	}
	if in.ContractorEmail != nil {
		z.ContractorEmail = in.ContractorEmail
	}
	if in.ContractorID != nil {
		z.ContractorID = in.ContractorID
	}
	if in.HourlyRateCents != nil {
		z.HourlyRateCents = *in.HourlyRateCents
	}
	if in.PenaltyPerVehicleCents != nil {
		z.PenaltyPerVehicleCents = *in.PenaltyPerVehicleCents
	}
	if in.OperatingHours != nil {
		z.OperatingHours = *in.OperatingHours
	}
	if in.Status != nil {
		z.Status = *in.Status
	}
}
