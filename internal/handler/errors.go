package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/dto"
	"github.com/iliyamo/smart-parking/internal/middleware"
)

// HTTPErrorHandler renders every error as {"success": false, "error"}.
// apperr kinds map to their status; echo.HTTPError keeps its own code.
// Internal errors are logged with their cause and shown generically.
func HTTPErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, msg := statusAndMessage(err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("request_id", middleware.RequestID(c)),
				zap.String("route", c.Path()),
				zap.Error(err))
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, dto.Fail(msg))
		}
		if werr != nil {
			log.Warn("error response not written", zap.Error(werr))
		}
	}
}

func statusAndMessage(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, msg
	}
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		return kind.Status(), "An unexpected error occurred. Please try again."
	}
	return kind.Status(), apperr.Message(err)
}
