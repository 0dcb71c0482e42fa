package middleware // reusable echo middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/utils"
)

// JWTAuth validates a Bearer access token and stores its subject and
// role in the context as user_id (uint64) and role (string). Requests
// without a valid token fail with an authentication error, which the
// central error handler renders as 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return apperr.Authentication("missing bearer token")
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return apperr.Authentication("invalid or expired token")
			}
			c.Set(keyUserID, claims.UserID)
			c.Set(keyRole, claims.Role)
			return next(c)
		}
	}
}

// OptionalJWT is JWTAuth for routes open to anonymous callers. A
// missing or bad token leaves the request anonymous.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearer(c); ok {
				if claims, err := utils.ParseAccessToken(secret, raw); err == nil {
					c.Set(keyUserID, claims.UserID)
					c.Set(keyRole, claims.Role)
				}
			}
			return next(c)
		}
	}
}

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}
