package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/smart-parking/internal/model"
)

// BookingRepo provides persistence for bookings. Writes that move money
// run in the caller's transaction so the ledger row and the booking
// row commit together.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingCols = `b.id, b.user_id, b.zone_id, b.slot_id, b.vehicle_id, b.booking_start, b.booking_end,
	b.booking_type, b.status, b.total_price_cents, b.entry_time, b.created_at, b.updated_at`

func scanBooking(s rowScanner, extra ...any) (*model.Booking, error) {
	var (
		b      model.Booking
		slotID sql.NullInt64
		entry  sql.NullTime
	)
	dest := []any{&b.ID, &b.UserID, &b.ZoneID, &slotID, &b.VehicleID, &b.BookingStart, &b.BookingEnd,
		&b.BookingType, &b.Status, &b.TotalPriceCents, &entry, &b.CreatedAt, &b.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	b.SlotID = nullUint(slotID)
	b.EntryTime = nullTime(entry)
	return &b, nil
}

// CreateTx inserts b and sets its ID.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (user_id, zone_id, slot_id, vehicle_id, booking_start, booking_end, booking_type, status, total_price_cents)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		b.UserID, b.ZoneID, b.SlotID, b.VehicleID, b.BookingStart, b.BookingEnd, b.BookingType, b.Status, b.TotalPriceCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetForUser returns ErrBookingNotFound when the booking does not exist
// or belongs to someone else.
func (r *BookingRepo) GetForUser(ctx context.Context, id, userID uint64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		"SELECT "+bookingCols+" FROM bookings b WHERE b.id = ? AND b.user_id = ?", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// GetForUpdateTx is GetForUser with a row lock held until tx ends.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id, userID uint64) (*model.Booking, error) {
	b, err := scanBooking(tx.QueryRowContext(ctx,
		"SELECT "+bookingCols+" FROM bookings b WHERE b.id = ? AND b.user_id = ? FOR UPDATE", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// SetStatusTx changes the status of a locked booking.
func (r *BookingRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	_, err := tx.ExecContext(ctx, "UPDATE bookings SET status = ? WHERE id = ?", status, id)
	return err
}

// MarkEntry stamps the gate scan time.
func (r *BookingRepo) MarkEntry(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE bookings SET entry_time = ? WHERE id = ?", at, id)
	return err
}

// ListByUser returns the user's bookings, newest first, with zone name,
// slot number and plate filled in.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingCols + `, z.zone_name, COALESCE(s.slot_number, ''), COALESCE(v.license_plate, '')
		FROM bookings b
		JOIN parking_zones z ON z.id = b.zone_id
		LEFT JOIN parking_slots s ON s.id = b.slot_id
		LEFT JOIN vehicles v ON v.id = b.vehicle_id
		WHERE b.user_id = ? ORDER BY b.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		var zoneName, slot, plate string
		b, err := scanBooking(rows, &zoneName, &slot, &plate)
		if err != nil {
			return nil, err
		}
		b.ZoneName, b.SlotNumber, b.LicensePlate = zoneName, slot, plate
		out = append(out, *b)
	}
	return out, rows.Err()
}

// CountOverlapping counts active bookings in the zone intersecting
// [start, end).
func (r *BookingRepo) CountOverlapping(ctx context.Context, zoneID uint64, start, end time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE zone_id = ? AND status = 'active' AND booking_start < ? AND booking_end > ?",
		zoneID, end, start).Scan(&n)
	return n, err
}

// CloseEnded finishes active bookings whose window ended before now.
// Scanned bookings become completed, the rest expired.
func (r *BookingRepo) CloseEnded(ctx context.Context, now time.Time) (completed, expired int64, err error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE bookings SET status = 'completed' WHERE status = 'active' AND booking_end < ? AND entry_time IS NOT NULL", now)
	if err != nil {
		return 0, 0, err
	}
	completed, _ = res.RowsAffected()
	res, err = r.db.ExecContext(ctx,
		"UPDATE bookings SET status = 'expired' WHERE status = 'active' AND booking_end < ? AND entry_time IS NULL", now)
	if err != nil {
		return completed, 0, err
	}
	expired, _ = res.RowsAffected()
	return completed, expired, nil
}
