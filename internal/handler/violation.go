package handler

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smart-parking/internal/dto"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/service"
)

type ViolationHandler struct {
	violations *service.ViolationService
}

func NewViolationHandler(violations *service.ViolationService) *ViolationHandler {
	return &ViolationHandler{violations: violations}
}

func violationFilter(c echo.Context) model.ViolationFilter {
	return model.ViolationFilter{
		ZoneName: strings.TrimSpace(c.QueryParam("zone_name")),
		Status:   strings.ToLower(c.QueryParam("status")),
		Severity: strings.ToLower(c.QueryParam("severity")),
		Page:     queryInt(c, "page", 1),
		Limit:    queryInt(c, "limit", service.DefaultViolationPage),
	}
}

func (h *ViolationHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	page, err := h.violations.List(ctx, violationFilter(c))
	if err != nil {
		return err
	}
	return ok(c, dto.FromViolationPage(page))
}

func (h *ViolationHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.violations.Get(ctx, id)
	if err != nil {
		return err
	}
	return ok(c, dto.FromViolation(v))
}

func (h *ViolationHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.violations.Stats(ctx)
	if err != nil {
		return err
	}
	return ok(c, dto.FromViolationStats(st))
}

// Export streams the filtered violations as a CSV attachment. The file
// is rendered in memory first so a failure still yields a JSON error.
func (h *ViolationHandler) Export(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	var buf bytes.Buffer
	if err := h.violations.ExportCSV(ctx, violationFilter(c), &buf); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="`+service.ExportFilename(time.Now())+`"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *ViolationHandler) Create(c echo.Context) error {
	var req dto.ViolationRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.violations.Create(ctx, req.Manual())
	if err != nil {
		return err
	}
	return created(c, dto.FromViolation(v), "Violation created successfully")
}

func (h *ViolationHandler) Resolve(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req dto.ResolveRequest
	_ = c.Bind(&req)
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.violations.Resolve(ctx, id, req.Notes)
	if err != nil {
		return err
	}
	return done(c, dto.FromViolation(v), "Violation resolved successfully")
}

func (h *ViolationHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.violations.Delete(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
