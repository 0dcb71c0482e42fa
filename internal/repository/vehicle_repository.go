package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/smart-parking/internal/model"
)

// VehicleRepo manages the vehicles a user registers for bookings.
type VehicleRepo struct {
	db *sql.DB
}

func NewVehicleRepo(db *sql.DB) *VehicleRepo { return &VehicleRepo{db: db} }

const vehicleCols = "id, user_id, license_plate, vehicle_type, model, color, created_at, updated_at"

func scanVehicle(s rowScanner) (*model.Vehicle, error) {
	var v model.Vehicle
	if err := s.Scan(&v.ID, &v.UserID, &v.LicensePlate, &v.VehicleType, &v.Model, &v.Color, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

// NormalizePlate upper-cases a plate and strips spaces and dashes.
func NormalizePlate(p string) string {
	r := strings.NewReplacer(" ", "", "-", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(p)))
}

// Create inserts v. A plate registered by anyone returns ErrPlateExists.
func (r *VehicleRepo) Create(ctx context.Context, v *model.Vehicle) error {
	v.LicensePlate = NormalizePlate(v.LicensePlate)
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO vehicles (user_id, license_plate, vehicle_type, model, color) VALUES (?,?,?,?,?)",
		v.UserID, v.LicensePlate, v.VehicleType, v.Model, v.Color)
	if err != nil {
		if isDuplicate(err) {
			return ErrPlateExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	return nil
}

// GetForUser returns ErrVehicleNotFound unless userID owns the vehicle.
func (r *VehicleRepo) GetForUser(ctx context.Context, id, userID uint64) (*model.Vehicle, error) {
	v, err := scanVehicle(r.db.QueryRowContext(ctx,
		"SELECT "+vehicleCols+" FROM vehicles WHERE id = ? AND user_id = ?", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVehicleNotFound
	}
	return v, err
}

func (r *VehicleRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Vehicle, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+vehicleCols+" FROM vehicles WHERE user_id = ? ORDER BY id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// Update changes the descriptive fields; the plate is immutable.
func (r *VehicleRepo) Update(ctx context.Context, v *model.Vehicle) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE vehicles SET vehicle_type = ?, model = ?, color = ? WHERE id = ? AND user_id = ?",
		v.VehicleType, v.Model, v.Color, v.ID, v.UserID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetForUser(ctx, v.ID, v.UserID); err != nil {
			return err
		}
	}
	return nil
}

func (r *VehicleRepo) Delete(ctx context.Context, id, userID uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM vehicles WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVehicleNotFound
	}
	return nil
}
