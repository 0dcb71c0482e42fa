package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/queue"
	"github.com/iliyamo/smart-parking/internal/repository"
)

// DefaultViolationPage is the listing page size when none is given.
const DefaultViolationPage = 20

// ViolationService covers manual violation management. Automatic
// detection lives in the Reconciler.
type ViolationService struct {
	db         *sql.DB
	zones      *repository.ZoneRepo
	violations *repository.ViolationRepo
	defPenalty int64
	events     queue.Publisher
	log        *zap.Logger
	now        func() time.Time
}

func NewViolationService(db *sql.DB, zones *repository.ZoneRepo, violations *repository.ViolationRepo,
	defaultPenalty int64, events queue.Publisher, log *zap.Logger) *ViolationService {
	return &ViolationService{
		db:         db,
		zones:      zones,
		violations: violations,
		defPenalty: defaultPenalty,
		events:     events,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ViolationPage is one page of a listing.
type ViolationPage struct {
	Items []model.Violation
	Total int
	Page  int
	Pages int
}

func (s *ViolationService) List(ctx context.Context, f model.ViolationFilter) (*ViolationPage, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = DefaultViolationPage
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Status == "paid" {
		f.Status = "resolved"
	}
	items, total, err := s.violations.List(ctx, f)
	if err != nil {
		return nil, apperr.Internal("could not load violations", err)
	}
	return &ViolationPage{
		Items: items,
		Total: total,
		Page:  f.Page,
		Pages: (total + f.Limit - 1) / f.Limit,
	}, nil
}

func (s *ViolationService) Get(ctx context.Context, id uint64) (*model.Violation, error) {
	v, err := s.violations.GetByID(ctx, id)
	if errors.Is(err, repository.ErrViolationNotFound) {
		return nil, apperr.NotFound("Violation not found")
	}
	return v, internal("could not load violation", err)
}

func (s *ViolationService) Stats(ctx context.Context) (model.ViolationStats, error) {
	st, err := s.violations.Stats(ctx)
	return st, internal("could not load violation stats", err)
}

// ManualViolation is an officer-reported violation.
type ManualViolation struct {
	ZoneID         uint64
	ExcessVehicles int
	Severity       string // computed from the zone limit when empty
	Notes          string
}

// Create records a manual violation. A zone keeps at most one open
// violation, so reporting on a zone that already has one is a conflict.
func (s *ViolationService) Create(ctx context.Context, in ManualViolation) (*model.Violation, error) {
	if in.ZoneID == 0 {
		return nil, apperr.Validation("zone_id is required")
	}
	if in.ExcessVehicles < 1 {
		return nil, apperr.Validation("Excess vehicles must be at least 1")
	}
	if in.Severity != "" && in.Severity != model.SeverityWarning && in.Severity != model.SeverityCritical {
		return nil, apperr.Validation("Severity must be warning or critical")
	}

	var v *model.Violation
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		z, err := s.zones.GetForUpdateTx(ctx, tx, in.ZoneID)
		if errors.Is(err, repository.ErrZoneNotFound) {
			return apperr.NotFound("Parking zone not found")
		}
		if err != nil {
			return apperr.Internal("could not load zone", err)
		}
		_, err = s.violations.OpenForUpdateTx(ctx, tx, z.ID)
		switch {
		case err == nil:
			return apperr.Conflict("This zone already has an open violation")
		case !errors.Is(err, repository.ErrViolationNotFound):
			return apperr.Internal("could not load violation", err)
		}

		rate := z.PenaltyPerVehicleCents
		if rate <= 0 {
			rate = s.defPenalty
		}
		severity := in.Severity
		if severity == "" {
			severity = model.SeverityFor(in.ExcessVehicles, z.ContractorLimit)
		}
		notes := strings.TrimSpace(in.Notes)
		if notes == "" {
			notes = fmt.Sprintf("Excess parking detected at %s", z.ZoneName)
		}
		v = &model.Violation{
			ZoneID:             z.ID,
			ZoneName:           z.ZoneName,
			ExcessVehicles:     in.ExcessVehicles,
			PenaltyAmountCents: int64(in.ExcessVehicles) * rate,
			Severity:           severity,
			Notes:              notes,
			DetectedAt:         s.now(),
		}
		if err := s.violations.CreateTx(ctx, tx, v); err != nil {
			return apperr.Internal("could not create violation", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	queue.Emit(s.events, s.log, queue.ViolationOpened, "violation", v.ID, nil, queue.ViolationData{
		ZoneID:             v.ZoneID,
		ZoneName:           v.ZoneName,
		ExcessVehicles:     v.ExcessVehicles,
		PenaltyAmountCents: v.PenaltyAmountCents,
		Severity:           v.Severity,
	})
	return v, nil
}

// Resolve closes a violation by hand and appends notes.
func (s *ViolationService) Resolve(ctx context.Context, id uint64, notes string) (*model.Violation, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Resolved {
		return nil, apperr.Validation("Violation already resolved")
	}
	at := s.now()
	merged := v.Notes
	if n := strings.TrimSpace(notes); n != "" {
		merged = AppendNote(merged, n)
	}
	switch err := s.violations.Resolve(ctx, id, at, merged); {
	case errors.Is(err, repository.ErrNoChange):
		return nil, apperr.Validation("Violation already resolved")
	case errors.Is(err, repository.ErrViolationNotFound):
		return nil, apperr.NotFound("Violation not found")
	case err != nil:
		return nil, apperr.Internal("could not resolve violation", err)
	}
	v.Resolved, v.ResolvedAt, v.Notes = true, &at, merged

	queue.Emit(s.events, s.log, queue.ViolationResolved, "violation", v.ID, nil, queue.ViolationData{
		ZoneID:             v.ZoneID,
		ZoneName:           v.ZoneName,
		ExcessVehicles:     v.ExcessVehicles,
		PenaltyAmountCents: v.PenaltyAmountCents,
		Severity:           v.Severity,
	})
	return v, nil
}

func (s *ViolationService) Delete(ctx context.Context, id uint64) error {
	err := s.violations.Delete(ctx, id)
	if errors.Is(err, repository.ErrViolationNotFound) {
		return apperr.NotFound("Violation not found")
	}
	return internal("could not delete violation", err)
}

var exportHeader = []string{"ID", "Zone Name", "Severity", "Excess Vehicles", "Penalty Amount", "Resolved", "Timestamp", "Notes"}

// ExportCSV writes every violation matching f, newest first. Penalty is
// rendered in rupees.
func (s *ViolationService) ExportCSV(ctx context.Context, f model.ViolationFilter, w io.Writer) error {
	f.Limit = 0
	items, _, err := s.violations.List(ctx, f)
	if err != nil {
		return apperr.Internal("could not load violations", err)
	}
	return WriteViolationsCSV(w, items)
}

// WriteViolationsCSV renders rows with the export header.
func WriteViolationsCSV(w io.Writer, items []model.Violation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, v := range items {
		resolved := "No"
		if v.Resolved {
			resolved = "Yes"
		}
		zone := v.ZoneName
		if zone == "" {
			zone = "N/A"
		}
		rec := []string{
			strconv.FormatUint(v.ID, 10),
			zone,
			v.Severity,
			strconv.Itoa(v.ExcessVehicles),
			Rupees(v.PenaltyAmountCents),
			resolved,
			v.DetectedAt.UTC().Format(time.RFC3339),
			v.Notes,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Rupees renders paise as a two-decimal rupee amount.
func Rupees(paise int64) string {
	sign := ""
	if paise < 0 {
		sign, paise = "-", -paise
	}
	return fmt.Sprintf("%s%d.%02d", sign, paise/100, paise%100)
}

// ExportFilename is the attachment name for an export made at t.
func ExportFilename(t time.Time) string {
	return "mcd_violations_export_" + t.UTC().Format("2006-01-02") + ".csv"
}
