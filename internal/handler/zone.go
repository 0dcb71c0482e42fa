package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smart-parking/internal/dto"
	"github.com/iliyamo/smart-parking/internal/middleware"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/service"
)

// ZoneHandler serves /v1/zones. Occupancy updates go to the reconciler.
type ZoneHandler struct {
	zones      *service.ZoneService
	reconciler *service.Reconciler
}

func NewZoneHandler(zones *service.ZoneService, reconciler *service.Reconciler) *ZoneHandler {
	return &ZoneHandler{zones: zones, reconciler: reconciler}
}

func zoneFilter(c echo.Context) model.ZoneFilter {
	f := model.ZoneFilter{
		Status:       strings.ToLower(strings.TrimSpace(c.QueryParam("status"))),
		MinOccupancy: queryFloat(c, "min_occupancy"),
		MaxOccupancy: queryFloat(c, "max_occupancy"),
		Search:       strings.TrimSpace(c.QueryParam("search")),
		Sort:         c.QueryParam("sort"),
		Order:        c.QueryParam("order"),
	}
	if id, err := strconv.ParseUint(c.QueryParam("contractor_id"), 10, 64); err == nil {
		f.ContractorID = &id
	}
	return f
}

// List is public; a signed-in contractor can pass scope=owned.
func (h *ZoneHandler) List(c echo.Context) error {
	var who *service.Actor
	if id, ok := middleware.UserID(c); ok {
		who = &service.Actor{UserID: id, Role: middleware.Role(c)}
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	zones, err := h.zones.List(ctx, who, c.QueryParam("scope"), zoneFilter(c))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"zones": dto.FromZones(zones), "count": len(zones)})
}

func (h *ZoneHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	z, err := h.zones.Get(ctx, id)
	if err != nil {
		return err
	}
	return ok(c, dto.FromZone(z))
}

func (h *ZoneHandler) Slots(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	slots, err := h.zones.Slots(ctx, id)
	if err != nil {
		return err
	}
	return ok(c, dto.FromSlots(slots))
}

func (h *ZoneHandler) Create(c echo.Context) error {
	who, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.ZoneRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	z, err := h.zones.Create(ctx, who, req.Input())
	if err != nil {
		return err
	}
	return created(c, dto.FromZone(z), "Parking zone created successfully")
}

func (h *ZoneHandler) Update(c echo.Context) error {
	who, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req dto.ZoneRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	z, err := h.zones.Update(ctx, who, id, req.Input())
	if err != nil {
		return err
	}
	return done(c, dto.FromZone(z), "Parking zone updated successfully")
}

func (h *ZoneHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.zones.Delete(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdateOccupancy applies a delta or absolute occupancy and reports
// what happened to the zone's violation.
func (h *ZoneHandler) UpdateOccupancy(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req dto.OccupancyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.reconciler.UpdateOccupancy(ctx, id, req.Update())
	if err != nil {
		return err
	}
	return done(c, dto.FromReconcile(res), "Occupancy updated successfully")
}

func (h *ZoneHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.zones.Stats(ctx)
	if err != nil {
		return err
	}
	return ok(c, dto.FromZoneStats(st))
}

// CheckViolations lists zones currently above their limit.
func (h *ZoneHandler) CheckViolations(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	xs, err := h.reconciler.CheckViolations(ctx)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"violations": dto.FromZoneExcess(xs), "count": len(xs)})
}
