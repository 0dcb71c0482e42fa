package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/config"
)

// HeaderIdempotencyKey names the client-chosen key of a retried POST.
const HeaderIdempotencyKey = "X-Idempotency-Key"

const idempotencyLockTTL = 30 * time.Second

// NewIdempotency replays the stored response of a POST that carries an
// already used X-Idempotency-Key for the same user and route, so a
// retried top-up or booking charges the wallet once. Keys are scoped per
// user. Errors returned to the central error handler are not stored,
// so a failed request can be retried with the same key.
// Requests without the header, and every request when rdb is nil, pass
// straight through.
func NewIdempotency(cfg config.IdempotencyConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			idem := strings.TrimSpace(req.Header.Get(HeaderIdempotencyKey))
			if req.Method != http.MethodPost || idem == "" {
				return next(c)
			}
			if len(idem) > 128 {
				return apperr.Validation("X-Idempotency-Key is too long")
			}
			key := strings.Join([]string{cfg.Prefix, identityKey(c), c.Path(), c.Param("id"), idem}, ":")
			ctx := req.Context()

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				if writeStored(c, bs, "Idempotent-Replay", "true") {
					return nil
				}
			}
			locked, err := rdb.SetNX(ctx, key+":lock", "1", idempotencyLockTTL).Result()
			if err != nil {
				return next(c)
			}
			if !locked {
				return apperr.Conflict("A request with this idempotency key is already in progress")
			}
			defer rdb.Del(context.Background(), key+":lock")

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK}
			c.Response().Writer = cw
			if err := next(c); err != nil {
				return err
			}
			if cw.status >= http.StatusInternalServerError {
				return nil
			}
			if payload, err := encodePayload(cw.status, snapshotHeader(c.Response().Header()), cw.buf.Bytes()); err == nil {
				_ = rdb.Set(context.Background(), key, payload, cfg.TTL).Err()
			}
			return nil
		}
	}
}
