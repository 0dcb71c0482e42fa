package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/smart-parking/internal/model"
)

const violationCols = `v.id, v.zone_id, v.excess_vehicles, v.penalty_amount_cents, v.severity,
	v.resolved, v.resolved_at, v.notes, v.detected_at, v.updated_at, z.zone_name`

// ViolationRepo persists violations. Reads join the zone for its name.
type ViolationRepo struct {
	db *sql.DB
}

func NewViolationRepo(db *sql.DB) *ViolationRepo { return &ViolationRepo{db: db} }

func (r *ViolationRepo) DB() *sql.DB { return r.db }

func scanViolation(s rowScanner) (*model.Violation, error) {
	var (
		v          model.Violation
		resolvedAt sql.NullTime
		notes      sql.NullString
	)
	err := s.Scan(&v.ID, &v.ZoneID, &v.ExcessVehicles, &v.PenaltyAmountCents, &v.Severity,
		&v.Resolved, &resolvedAt, &notes, &v.DetectedAt, &v.UpdatedAt, &v.ZoneName)
	if err != nil {
		return nil, err
	}
	v.ResolvedAt = nullTime(resolvedAt)
	v.Notes = notes.String
	return &v, nil
}

// OpenForUpdateTx returns the zone's unresolved violation, locked, or
// ErrViolationNotFound when the zone has none.
func (r *ViolationRepo) OpenForUpdateTx(ctx context.Context, tx *sql.Tx, zoneID uint64) (*model.Violation, error) {
	const q = `SELECT ` + violationCols + ` FROM violations v JOIN parking_zones z ON z.id = v.zone_id
		WHERE v.zone_id = ? AND v.resolved = 0 ORDER BY v.id DESC LIMIT 1 FOR UPDATE`
	v, err := scanViolation(tx.QueryRowContext(ctx, q, zoneID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrViolationNotFound
	}
	return v, err
}

// CreateTx inserts v inside tx and sets its ID.
func (r *ViolationRepo) CreateTx(ctx context.Context, tx *sql.Tx, v *model.Violation) error {
	return r.create(ctx, tx, v)
}

// Create inserts a manually reported violation.
func (r *ViolationRepo) Create(ctx context.Context, v *model.Violation) error {
	return r.create(ctx, r.db, v)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *ViolationRepo) create(ctx context.Context, ex execer, v *model.Violation) error {
	if v.DetectedAt.IsZero() {
		v.DetectedAt = time.Now().UTC()
	}
	res, err := ex.ExecContext(ctx,
		`INSERT INTO violations (zone_id, excess_vehicles, penalty_amount_cents, severity, resolved, notes, detected_at)
		 VALUES (?,?,?,?,0,?,?)`,
		v.ZoneID, v.ExcessVehicles, v.PenaltyAmountCents, v.Severity, v.Notes, v.DetectedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	return nil
}

// UpdateExcessTx rewrites the measured excess of an open violation.
func (r *ViolationRepo) UpdateExcessTx(ctx context.Context, tx *sql.Tx, id uint64, excess int, penalty int64, severity string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE violations SET excess_vehicles = ?, penalty_amount_cents = ?, severity = ? WHERE id = ?",
		excess, penalty, severity, id)
	return err
}

// ResolveTx closes a violation, replacing its notes with notes. It
// returns ErrNoChange when no open row with that id exists.
func (r *ViolationRepo) ResolveTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time, notes string) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE violations SET resolved = 1, resolved_at = ?, notes = ? WHERE id = ? AND resolved = 0",
		at, notes, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoChange
	}
	return nil
}

// Resolve closes a violation outside the reconciler. It returns
// ErrNoChange when the violation is already resolved.
func (r *ViolationRepo) Resolve(ctx context.Context, id uint64, at time.Time, notes string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE violations SET resolved = 1, resolved_at = ?, notes = ? WHERE id = ? AND resolved = 0",
		at, notes, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrNoChange
	}
	return nil
}

// GetByID returns ErrViolationNotFound when no row matches.
func (r *ViolationRepo) GetByID(ctx context.Context, id uint64) (*model.Violation, error) {
	const q = `SELECT ` + violationCols + ` FROM violations v JOIN parking_zones z ON z.id = v.zone_id WHERE v.id = ?`
	v, err := scanViolation(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrViolationNotFound
	}
	return v, err
}

func violationWhere(f model.ViolationFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(f.ZoneName); s != "" {
		where = append(where, "z.zone_name LIKE ?")
		args = append(args, "%"+s+"%")
	}
	switch f.Status {
	case "pending":
		where = append(where, "v.resolved = 0")
	case "resolved":
		where = append(where, "v.resolved = 1")
	}
	if f.Severity != "" {
		where = append(where, "v.severity = ?")
		args = append(args, f.Severity)
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// List returns one page of violations, newest first, and the total
// number of matches. A non-positive Limit returns every match.
func (r *ViolationRepo) List(ctx context.Context, f model.ViolationFilter) ([]model.Violation, int, error) {
	where, args := violationWhere(f)
	const from = " FROM violations v JOIN parking_zones z ON z.id = v.zone_id"

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+from+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := "SELECT " + violationCols + from + where + " ORDER BY v.detected_at DESC, v.id DESC"
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, (page-1)*f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.Violation
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *v)
	}
	return out, total, rows.Err()
}

// Stats summarises the table for the dashboard.
func (r *ViolationRepo) Stats(ctx context.Context) (model.ViolationStats, error) {
	const q = `SELECT COUNT(*),
		COALESCE(SUM(resolved = 0), 0),
		COALESCE(SUM(resolved = 1), 0),
		COALESCE(SUM(resolved = 0 AND severity = 'critical'), 0),
		COALESCE(SUM(CASE WHEN resolved = 0 THEN penalty_amount_cents ELSE 0 END), 0)
		FROM violations`
	var s model.ViolationStats
	err := r.db.QueryRowContext(ctx, q).Scan(&s.Total, &s.Pending, &s.Resolved, &s.CriticalPending, &s.TotalPenaltyOpen)
	return s, err
}

// Delete removes a violation.
func (r *ViolationRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM violations WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrViolationNotFound
	}
	return nil
}
