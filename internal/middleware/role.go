package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smart-parking/internal/apperr"
)

// RequireRole lets the request through only when the role stored by
// JWTAuth is one of roles. It must run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[Role(c)] {
				return apperr.Authorization("Access denied. Insufficient permissions.")
			}
			return next(c)
		}
	}
}
