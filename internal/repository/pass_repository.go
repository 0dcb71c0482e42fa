package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/smart-parking/internal/model"
)

// PassRepo persists subscription passes.
type PassRepo struct {
	db *sql.DB
}

func NewPassRepo(db *sql.DB) *PassRepo { return &PassRepo{db: db} }

const passCols = `p.id, p.user_id, p.zone_id, p.pass_type, p.start_date, p.end_date, p.price_cents,
	p.status, p.qr_code, p.created_at, p.updated_at`

func scanPass(s rowScanner, extra ...any) (*model.Pass, error) {
	var (
		p      model.Pass
		zoneID sql.NullInt64
	)
	dest := []any{&p.ID, &p.UserID, &zoneID, &p.PassType, &p.StartDate, &p.EndDate, &p.PriceCents,
		&p.Status, &p.QRCode, &p.CreatedAt, &p.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	p.ZoneID = nullUint(zoneID)
	return &p, nil
}

// CreateTx inserts p and sets its ID. A clashing QR code is reported
// as ErrConflict so the caller can draw a new one.
func (r *PassRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Pass) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO passes (user_id, zone_id, pass_type, start_date, end_date, price_cents, status, qr_code)
		 VALUES (?,?,?,?,?,?,?,?)`,
		p.UserID, p.ZoneID, p.PassType, p.StartDate, p.EndDate, p.PriceCents, p.Status, p.QRCode)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetForUser returns ErrPassNotFound when the pass does not exist or
// belongs to someone else.
func (r *PassRepo) GetForUser(ctx context.Context, id, userID uint64) (*model.Pass, error) {
	p, err := scanPass(r.db.QueryRowContext(ctx,
		"SELECT "+passCols+" FROM passes p WHERE p.id = ? AND p.user_id = ?", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPassNotFound
	}
	return p, err
}

// GetForUpdateTx is GetForUser with a row lock.
func (r *PassRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id, userID uint64) (*model.Pass, error) {
	p, err := scanPass(tx.QueryRowContext(ctx,
		"SELECT "+passCols+" FROM passes p WHERE p.id = ? AND p.user_id = ? FOR UPDATE", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPassNotFound
	}
	return p, err
}

func (r *PassRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	_, err := tx.ExecContext(ctx, "UPDATE passes SET status = ? WHERE id = ?", status, id)
	return err
}

func (r *PassRepo) SetStatus(ctx context.Context, id uint64, status string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE passes SET status = ? WHERE id = ?", status, id)
	return err
}

// ListByUser returns the user's passes, newest first. ZoneName is empty
// for all-zone passes.
func (r *PassRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Pass, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+passCols+", COALESCE(z.zone_name, '') FROM passes p LEFT JOIN parking_zones z ON z.id = p.zone_id WHERE p.user_id = ? ORDER BY p.id DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Pass
	for rows.Next() {
		var zoneName string
		p, err := scanPass(rows, &zoneName)
		if err != nil {
			return nil, err
		}
		p.ZoneName = zoneName
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ExpireEnded marks active passes past their end date as expired.
func (r *PassRepo) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "UPDATE passes SET status = 'expired' WHERE status = 'active' AND end_date < ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
