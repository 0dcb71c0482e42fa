package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/smart-parking/internal/model"
)

const zoneCols = `id, zone_name, address, latitude, longitude, total_capacity, current_occupancy,
	contractor_limit, contractor_name, contractor_contact, contractor_email, contractor_id,
	hourly_rate_cents, penalty_per_vehicle_cents, operating_hours, status, created_at, updated_at`

// ZoneRepo encapsulates queries on parking_zones and parking_slots.
type ZoneRepo struct {
	db *sql.DB
}

func NewZoneRepo(db *sql.DB) *ZoneRepo { return &ZoneRepo{db: db} }

// DB exposes the pool so services can open transactions spanning repos.
func (r *ZoneRepo) DB() *sql.DB { return r.db }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanZone(s rowScanner) (*model.Zone, error) {
	var (
		z       model.Zone
		contact sql.NullString
		email   sql.NullString
		ownerID sql.NullInt64
	)
	err := s.Scan(&z.ID, &z.ZoneName, &z.Address, &z.Latitude, &z.Longitude,
		&z.TotalCapacity, &z.CurrentOccupancy, &z.ContractorLimit, &z.ContractorName,
		&contact, &email, &ownerID, &z.HourlyRateCents, &z.PenaltyPerVehicleCents,
		&z.OperatingHours, &z.Status, &z.CreatedAt, &z.UpdatedAt)
	if err != nil {
		return nil, err
	}
	z.ContractorContact = nullString(contact)
	z.ContractorEmail = nullString(email)
	z.ContractorID = nullUint(ownerID)
	return &z, nil
}

// GetByID returns ErrZoneNotFound when no row matches.
func (r *ZoneRepo) GetByID(ctx context.Context, id uint64) (*model.Zone, error) {
	z, err := scanZone(r.db.QueryRowContext(ctx, "SELECT "+zoneCols+" FROM parking_zones WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrZoneNotFound
	}
	return z, err
}

// GetForUpdateTx reads the zone and holds its row lock until tx ends.
func (r *ZoneRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Zone, error) {
	z, err := scanZone(tx.QueryRowContext(ctx, "SELECT "+zoneCols+" FROM parking_zones WHERE id = ? FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrZoneNotFound
	}
	return z, err
}

var zoneSorts = map[string]string{
	"name":      "zone_name",
	"occupancy": "current_occupancy * 100 / GREATEST(total_capacity, 1)",
	"capacity":  "total_capacity",
	"created":   "created_at",
}

// List returns zones matching f. Unknown sort keys fall back to name.
func (r *ZoneRepo) List(ctx context.Context, f model.ZoneFilter) ([]model.Zone, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.MinOccupancy != nil {
		where = append(where, "current_occupancy * 100 / GREATEST(total_capacity, 1) >= ?")
		args = append(args, *f.MinOccupancy)
	}
	if f.MaxOccupancy != nil {
		where = append(where, "current_occupancy * 100 / GREATEST(total_capacity, 1) <= ?")
		args = append(args, *f.MaxOccupancy)
	}
	if f.ContractorID != nil {
		where = append(where, "contractor_id = ?")
		args = append(args, *f.ContractorID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "(zone_name LIKE ? OR address LIKE ? OR contractor_name LIKE ?)")
		like := "%" + s + "%"
		args = append(args, like, like, like)
	}

	q := "SELECT " + zoneCols + " FROM parking_zones"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	col, ok := zoneSorts[f.Sort]
	if !ok {
		col = zoneSorts["name"]
	}
	dir := "ASC"
	if strings.EqualFold(f.Order, "desc") {
		dir = "DESC"
	}
	q += " ORDER BY " + col + " " + dir + ", id ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *z)
	}
	return out, rows.Err()
}

// OverLimit lists zones whose occupancy exceeds the contractor limit.
func (r *ZoneRepo) OverLimit(ctx context.Context) ([]model.Zone, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+zoneCols+" FROM parking_zones WHERE current_occupancy > contractor_limit ORDER BY (current_occupancy - contractor_limit) DESC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *z)
	}
	return out, rows.Err()
}

// Create inserts z and reloads it so defaults and timestamps are set.
func (r *ZoneRepo) Create(ctx context.Context, z *model.Zone) error {
	const q = `INSERT INTO parking_zones (zone_name, address, latitude, longitude, total_capacity,
		current_occupancy, contractor_limit, contractor_name, contractor_contact, contractor_email,
		contractor_id, hourly_rate_cents, penalty_per_vehicle_cents, operating_hours, status)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q, z.ZoneName, z.Address, z.Latitude, z.Longitude,
		z.TotalCapacity, z.CurrentOccupancy, z.ContractorLimit, z.ContractorName,
		z.ContractorContact, z.ContractorEmail, z.ContractorID, z.HourlyRateCents,
		z.PenaltyPerVehicleCents, z.OperatingHours, z.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*z = *fresh
	return nil
}

// UpdateTx writes every mutable column except current_occupancy, which
// only the reconciler changes. The caller holds the row lock, so a
// missing row cannot happen here.
func (r *ZoneRepo) UpdateTx(ctx context.Context, tx *sql.Tx, z *model.Zone) error {
	const q = `UPDATE parking_zones SET zone_name=?, address=?, latitude=?, longitude=?,
		total_capacity=?, contractor_limit=?, contractor_name=?, contractor_contact=?,
		contractor_email=?, contractor_id=?, hourly_rate_cents=?, penalty_per_vehicle_cents=?,
		operating_hours=?, status=? WHERE id=?`
	_, err := tx.ExecContext(ctx, q, z.ZoneName, z.Address, z.Latitude, z.Longitude,
		z.TotalCapacity, z.ContractorLimit, z.ContractorName, z.ContractorContact,
		z.ContractorEmail, z.ContractorID, z.HourlyRateCents, z.PenaltyPerVehicleCents,
		z.OperatingHours, z.Status, z.ID)
	return err
}

// SetOccupancyTx writes the new occupancy inside the reconciler's tx.
func (r *ZoneRepo) SetOccupancyTx(ctx context.Context, tx *sql.Tx, id uint64, occupancy int) error {
	_, err := tx.ExecContext(ctx, "UPDATE parking_zones SET current_occupancy = ? WHERE id = ?", occupancy, id)
	return err
}

// Delete removes a zone; violations and slots cascade.
func (r *ZoneRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM parking_zones WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrZoneNotFound
	}
	return nil
}

// Stats aggregates the overview shown on the dashboard.
func (r *ZoneRepo) Stats(ctx context.Context) (model.ZoneStats, error) {
	const q = `SELECT COUNT(*),
		COALESCE(SUM(status = 'active'), 0),
		COALESCE(SUM(current_occupancy > contractor_limit), 0),
		COALESCE(SUM(total_capacity), 0),
		COALESCE(SUM(current_occupancy), 0)
		FROM parking_zones`
	var s model.ZoneStats
	err := r.db.QueryRowContext(ctx, q).Scan(&s.TotalZones, &s.ActiveZones, &s.ViolatingZones,
		&s.TotalCapacity, &s.TotalOccupancy)
	return s, err
}

// Slots lists a zone's slots ordered by number.
func (r *ZoneRepo) Slots(ctx context.Context, zoneID uint64) ([]model.Slot, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, zone_id, slot_number, slot_type, status, created_at FROM parking_slots WHERE zone_id = ? ORDER BY slot_number",
		zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Slot
	for rows.Next() {
		var s model.Slot
		if err := rows.Scan(&s.ID, &s.ZoneID, &s.SlotNumber, &s.SlotType, &s.Status, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FirstSlotTx returns the zone's lowest slot, creating a default "A1"
// car slot in the same transaction when the zone has none.
func (r *ZoneRepo) FirstSlotTx(ctx context.Context, tx *sql.Tx, zoneID uint64) (*model.Slot, error) {
	var s model.Slot
	err := tx.QueryRowContext(ctx,
		"SELECT id, zone_id, slot_number, slot_type, status, created_at FROM parking_slots WHERE zone_id = ? ORDER BY id LIMIT 1",
		zoneID).Scan(&s.ID, &s.ZoneID, &s.SlotNumber, &s.SlotType, &s.Status, &s.CreatedAt)
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO parking_slots (zone_id, slot_number, slot_type, status) VALUES (?, 'A1', 'car', 'available')",
		zoneID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.Slot{ID: uint64(id), ZoneID: zoneID, SlotNumber: "A1", SlotType: "car", Status: "available"}, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullUint(n sql.NullInt64) *uint64 {
	if !n.Valid {
		return nil
	}
	v := uint64(n.Int64)
	return &v
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
