package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smart-parking/internal/dto"
	"github.com/iliyamo/smart-parking/internal/service"
)

type VehicleHandler struct {
	vehicles *service.VehicleService
}

func NewVehicleHandler(vehicles *service.VehicleService) *VehicleHandler {
	return &VehicleHandler{vehicles: vehicles}
}

func (h *VehicleHandler) Add(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req dto.VehicleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.vehicles.Add(ctx, uid, req.Input())
	if err != nil {
		return err
	}
	return created(c, dto.FromVehicle(v), "Vehicle added successfully")
}

func (h *VehicleHandler) List(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	vs, err := h.vehicles.Mine(ctx, uid)
	if err != nil {
		return err
	}
	return ok(c, dto.FromVehicles(vs))
}

func (h *VehicleHandler) Update(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req dto.VehicleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.vehicles.Update(ctx, uid, id, req.Input())
	if err != nil {
		return err
	}
	return done(c, dto.FromVehicle(v), "Vehicle updated successfully")
}

func (h *VehicleHandler) Delete(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.vehicles.Delete(ctx, uid, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
