// Package handler contains the echo HTTP handlers. Handlers bind a dto
// request, call one service method under a request-scoped timeout and
// answer with the dto envelope. Errors are returned, never written, so
// the central HTTPErrorHandler renders them uniformly.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/dto"
	"github.com/iliyamo/smart-parking/internal/middleware"
	"github.com/iliyamo/smart-parking/internal/service"
)

// requestTimeout bounds the database work of a single request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, dto.OK(data, ""))
}

func created(c echo.Context, data any, msg string) error {
	return c.JSON(http.StatusCreated, dto.OK(data, msg))
}

func done(c echo.Context, data any, msg string) error {
	return c.JSON(http.StatusOK, dto.OK(data, msg))
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.Validation("Invalid request body")
	}
	return nil
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid " + name)
	}
	return id, nil
}

// userID returns the caller's id. Routes using it sit behind JWTAuth,
// so a missing id is an authentication failure.
func userID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, apperr.Authentication("authentication required")
	}
	return id, nil
}

func actor(c echo.Context) (service.Actor, error) {
	id, err := userID(c)
	if err != nil {
		return service.Actor{}, err
	}
	return service.Actor{UserID: id, Role: middleware.Role(c)}, nil
}

func queryInt(c echo.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.QueryParam(name)); err == nil {
		return v
	}
	return def
}

func queryFloat(c echo.Context, name string) *float64 {
	v, err := strconv.ParseFloat(c.QueryParam(name), 64)
	if err != nil {
		return nil
	}
	return &v
}

func queryTime(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, apperr.Validation(name + " is required")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.Validation(name + " must be an RFC 3339 timestamp")
	}
	return t, nil
}
