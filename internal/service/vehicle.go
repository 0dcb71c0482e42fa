package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/repository"
)

var vehicleTypes = map[string]bool{"car": true, "bike": true, "truck": true, "ev": true}

type VehicleService struct {
	vehicles *repository.VehicleRepo
}

func NewVehicleService(vehicles *repository.VehicleRepo) *VehicleService {
	return &VehicleService{vehicles: vehicles}
}

// VehicleInput is used for both add and update. The plate is ignored on
// update.
type VehicleInput struct {
	LicensePlate string
	VehicleType  string
	Model        string
	Color        string
}

func (s *VehicleService) Add(ctx context.Context, userID uint64, in VehicleInput) (*model.Vehicle, error) {
	plate := repository.NormalizePlate(in.LicensePlate)
	if len(plate) < 4 || len(plate) > 15 {
		return nil, apperr.Validation("A valid license plate is required")
	}
	typ, err := vehicleType(in.VehicleType)
	if err != nil {
		return nil, err
	}
	v := &model.Vehicle{
		UserID:       userID,
		LicensePlate: plate,
		VehicleType:  typ,
		Model:        strings.TrimSpace(in.Model),
		Color:        strings.TrimSpace(in.Color),
	}
	switch err := s.vehicles.Create(ctx, v); {
	case errors.Is(err, repository.ErrPlateExists):
		return nil, apperr.Conflict("A vehicle with this license plate is already registered")
	case err != nil:
		return nil, apperr.Internal("could not add vehicle", err)
	}
	return v, nil
}

func (s *VehicleService) Mine(ctx context.Context, userID uint64) ([]model.Vehicle, error) {
	out, err := s.vehicles.ListByUser(ctx, userID)
	return out, internal("could not load vehicles", err)
}

// Update changes model and color, and the type when one is given.
func (s *VehicleService) Update(ctx context.Context, userID, id uint64, in VehicleInput) (*model.Vehicle, error) {
	v, err := s.vehicles.GetForUser(ctx, id, userID)
	if errors.Is(err, repository.ErrVehicleNotFound) {
		return nil, apperr.NotFound("Vehicle not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load vehicle", err)
	}
	if in.VehicleType != "" {
		if v.VehicleType, err = vehicleType(in.VehicleType); err != nil {
			return nil, err
		}
	}
	if m := strings.TrimSpace(in.Model); m != "" {
		v.Model = m
	}
	if c := strings.TrimSpace(in.Color); c != "" {
		v.Color = c
	}
	if err := s.vehicles.Update(ctx, v); err != nil {
		return nil, apperr.Internal("could not update vehicle", err)
	}
	return v, nil
}

func (s *VehicleService) Delete(ctx context.Context, userID, id uint64) error {
	err := s.vehicles.Delete(ctx, id, userID)
	if errors.Is(err, repository.ErrVehicleNotFound) {
		return apperr.NotFound("Vehicle not found")
	}
	return internal("could not delete vehicle", err)
}

func vehicleType(t string) (string, error) {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return "car", nil
	}
	if !vehicleTypes[t] {
		return "", apperr.Validation("Vehicle type must be car, bike, truck or ev")
	}
	return t, nil
}
