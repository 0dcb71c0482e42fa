package middleware

// identity.go holds the context keys the auth middleware fills and the
// accessors handlers and other middleware read them with.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	keyUserID    = "user_id"
	keyRole      = "role"
	keyRequestID = "request_id"
)

// UserID returns the authenticated user id, if any.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(keyUserID).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated role or "".
func Role(c echo.Context) string {
	r, _ := c.Get(keyRole).(string)
	return r
}

// RequestID returns the id assigned by RequestLogger.
func RequestID(c echo.Context) string {
	r, _ := c.Get(keyRequestID).(string)
	return r
}

// identityKey is the user part of rate limit and idempotency keys.
func identityKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
