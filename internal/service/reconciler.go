package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/queue"
	"github.com/iliyamo/smart-parking/internal/repository"
)

// AutoResolveNote is appended to a violation closed by the reconciler.
const AutoResolveNote = "Auto-resolved: Occupancy returned within limits."

// Action is what the reconciler did to the zone's open violation.
type Action string

const (
	ActionNone     Action = "none"
	ActionCreated  Action = "created"
	ActionUpdated  Action = "updated"
	ActionResolved Action = "resolved"
)

// OccupancyUpdate carries exactly one of a signed delta or an absolute
// value.
type OccupancyUpdate struct {
	Change   *int
	Absolute *int
}

// Decision is the pure outcome of comparing the new occupancy with the
// zone's limit and its open violation.
type Decision struct {
	Action       Action
	Excess       int
	PenaltyCents int64
	Severity     string
}

// Decide applies the reconciliation table:
//
//	open  excess  action
//	no    0       none
//	no    >0      create
//	yes   0       resolve
//	yes   >0      update in place
func Decide(occupancy, limit int, penaltyPerVehicle int64, hasOpen bool) Decision {
	excess := model.ExcessFor(occupancy, limit)
	d := Decision{
		Excess:       excess,
		PenaltyCents: int64(excess) * penaltyPerVehicle,
		Severity:     model.SeverityFor(excess, limit),
	}
	switch {
	case excess == 0 && !hasOpen:
		d.Action = ActionNone
	case excess > 0 && !hasOpen:
		d.Action = ActionCreated
	case excess == 0 && hasOpen:
		d.Action = ActionResolved
	default:
		d.Action = ActionUpdated
	}
	return d
}

// ReconcileResult is returned by UpdateOccupancy.
type ReconcileResult struct {
	Zone          model.Zone
	Action        Action
	ViolationOpen bool
	Violation     *model.Violation
}

// Reconciler keeps a zone's occupancy and its violation record in step.
type Reconciler struct {
	db         *sql.DB
	zones      *repository.ZoneRepo
	violations *repository.ViolationRepo
	defPenalty int64
	events     queue.Publisher
	log        *zap.Logger
	now        func() time.Time
}

func NewReconciler(db *sql.DB, zones *repository.ZoneRepo, violations *repository.ViolationRepo,
	defaultPenalty int64, events queue.Publisher, log *zap.Logger) *Reconciler {
	return &Reconciler{
		db:         db,
		zones:      zones,
		violations: violations,
		defPenalty: defaultPenalty,
		events:     events,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *Reconciler) penaltyRate(z *model.Zone) int64 {
	if z.PenaltyPerVehicleCents > 0 {
		return z.PenaltyPerVehicleCents
	}
	return r.defPenalty
}

// UpdateOccupancy sets a zone's occupancy and creates, updates or
// resolves its violation in the same transaction. The zone row and the
// open violation are locked for the duration, so concurrent updates to
// one zone are applied one after another.
func (r *Reconciler) UpdateOccupancy(ctx context.Context, zoneID uint64, upd OccupancyUpdate) (*ReconcileResult, error) {
	if (upd.Change == nil) == (upd.Absolute == nil) {
		return nil, apperr.Validation("Provide either occupancy_change or absolute_occupancy")
	}

	var res ReconcileResult
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		z, err := r.zones.GetForUpdateTx(ctx, tx, zoneID)
		if errors.Is(err, repository.ErrZoneNotFound) {
			return apperr.NotFound("Parking zone not found")
		}
		if err != nil {
			return apperr.Internal("could not load zone", err)
		}

		next := z.CurrentOccupancy
		if upd.Absolute != nil {
			next = *upd.Absolute
		} else {
			next += *upd.Change
		}
		if next < 0 {
			return apperr.Validation("Occupancy cannot be negative")
		}
		if next > z.TotalCapacity {
			return apperr.Validation("Occupancy cannot exceed total capacity")
		}

		open, err := r.lockOpenTx(ctx, tx, z.ID)
		if err != nil {
			return err
		}

		if err := r.zones.SetOccupancyTx(ctx, tx, z.ID, next); err != nil {
			return apperr.Internal("could not update occupancy", err)
		}
		z.CurrentOccupancy = next

		res, err = r.settleTx(ctx, tx, z, open)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.emit(&res)
	return &res, nil
}

// lockOpenTx locks the zone's open violation, if any. Callers lock the
// zone row first.
func (r *Reconciler) lockOpenTx(ctx context.Context, tx *sql.Tx, zoneID uint64) (*model.Violation, error) {
	open, err := r.violations.OpenForUpdateTx(ctx, tx, zoneID)
	if errors.Is(err, repository.ErrViolationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("could not load violation", err)
	}
	return open, nil
}

// settleTx brings open in line with z's current occupancy, limit and
// penalty rate.
func (r *Reconciler) settleTx(ctx context.Context, tx *sql.Tx, z *model.Zone, open *model.Violation) (ReconcileResult, error) {
	d := Decide(z.CurrentOccupancy, z.ContractorLimit, r.penaltyRate(z), open != nil)
	v, err := r.applyTx(ctx, tx, z, open, d)
	if err != nil {
		return ReconcileResult{}, err
	}
	return ReconcileResult{Zone: *z, Action: d.Action, Violation: v, ViolationOpen: v != nil && !v.Resolved}, nil
}

func (r *Reconciler) applyTx(ctx context.Context, tx *sql.Tx, z *model.Zone, open *model.Violation, d Decision) (*model.Violation, error) {
	switch d.Action {
	case ActionCreated:
		v := &model.Violation{
			ZoneID:             z.ID,
			ZoneName:           z.ZoneName,
			ExcessVehicles:     d.Excess,
			PenaltyAmountCents: d.PenaltyCents,
			Severity:           d.Severity,
			Notes:              fmt.Sprintf("Excess parking detected at %s", z.ZoneName),
			DetectedAt:         r.now(),
		}
		if err := r.violations.CreateTx(ctx, tx, v); err != nil {
			return nil, apperr.Internal("could not create violation", err)
		}
		return v, nil

	case ActionUpdated:
		if err := r.violations.UpdateExcessTx(ctx, tx, open.ID, d.Excess, d.PenaltyCents, d.Severity); err != nil {
			return nil, apperr.Internal("could not update violation", err)
		}
		open.ExcessVehicles, open.PenaltyAmountCents, open.Severity = d.Excess, d.PenaltyCents, d.Severity
		return open, nil

	case ActionResolved:
		at := r.now()
		notes := AppendNote(open.Notes, AutoResolveNote)
		if err := r.violations.ResolveTx(ctx, tx, open.ID, at, notes); err != nil {
			return nil, apperr.Internal("could not resolve violation", err)
		}
		open.Resolved, open.ResolvedAt, open.Notes = true, &at, notes
		return open, nil

	case ActionNone:
		return nil, nil
	}
	return nil, apperr.Internal("could not reconcile violation", fmt.Errorf("unknown action %q", d.Action))
}

// AppendNote adds line to notes on a new line.
func AppendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}

func (r *Reconciler) emit(res *ReconcileResult) {
	var typ string
	switch res.Action {
	case ActionCreated:
		typ = queue.ViolationOpened
	case ActionUpdated:
		typ = queue.ViolationUpdated
	case ActionResolved:
		typ = queue.ViolationResolved
	default:
		return
	}
	v := res.Violation
	queue.Emit(r.events, r.log, typ, "violation", v.ID, nil, queue.ViolationData{
		ZoneID:             res.Zone.ID,
		ZoneName:           res.Zone.ZoneName,
		Occupancy:          res.Zone.CurrentOccupancy,
		ContractorLimit:    res.Zone.ContractorLimit,
		ExcessVehicles:     v.ExcessVehicles,
		PenaltyAmountCents: v.PenaltyAmountCents,
		Severity:           v.Severity,
	})
	r.log.Info("violation reconciled",
		zap.Uint64("zone_id", res.Zone.ID),
		zap.String("action", string(res.Action)),
		zap.Int("excess", v.ExcessVehicles))
}

// ZoneExcess is one entry of CheckViolations.
type ZoneExcess struct {
	Zone         model.Zone
	Excess       int
	PenaltyCents int64
	Severity     string
}

// CheckViolations lists every zone currently above its contractor limit
// with the penalty it would incur.
func (r *Reconciler) CheckViolations(ctx context.Context) ([]ZoneExcess, error) {
	zones, err := r.zones.OverLimit(ctx)
	if err != nil {
		return nil, apperr.Internal("could not load zones", err)
	}
	out := make([]ZoneExcess, 0, len(zones))
	for i := range zones {
		z := zones[i]
		d := Decide(z.CurrentOccupancy, z.ContractorLimit, r.penaltyRate(&z), false)
		out = append(out, ZoneExcess{Zone: z, Excess: d.Excess, PenaltyCents: d.PenaltyCents, Severity: d.Severity})
	}
	return out, nil
}
