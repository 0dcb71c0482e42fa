package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/config"
	"github.com/iliyamo/smart-parking/internal/utils"
)

const testSecret = "test-secret"

func newContext(t *testing.T, method, target, token string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

func TestJWTAuth(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 42, "officer", 5)
	require.NoError(t, err)

	t.Run("valid token sets identity", func(t *testing.T) {
		c, rec := newContext(t, http.MethodGet, "/", tok.Token)
		require.NoError(t, JWTAuth(testSecret)(okHandler)(c))
		id, ok := UserID(c)
		assert.True(t, ok)
		assert.Equal(t, uint64(42), id)
		assert.Equal(t, "officer", Role(c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		c, _ := newContext(t, http.MethodGet, "/", "")
		err := JWTAuth(testSecret)(okHandler)(c)
		assert.True(t, apperr.Is(err, apperr.KindAuthentication))
	})

	t.Run("wrong secret", func(t *testing.T) {
		c, _ := newContext(t, http.MethodGet, "/", tok.Token)
		err := JWTAuth("other")(okHandler)(c)
		assert.True(t, apperr.Is(err, apperr.KindAuthentication))
	})

	t.Run("optional ignores bad token", func(t *testing.T) {
		c, _ := newContext(t, http.MethodGet, "/", "garbage")
		require.NoError(t, OptionalJWT(testSecret)(okHandler)(c))
		_, ok := UserID(c)
		assert.False(t, ok)
	})
}

func TestRequireRole(t *testing.T) {
	c, _ := newContext(t, http.MethodGet, "/", "")
	c.Set(keyRole, "viewer")
	err := RequireRole("admin", "officer")(okHandler)(c)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	c.Set(keyRole, "officer")
	assert.NoError(t, RequireRole("admin", "officer")(okHandler)(c))
}

func TestLocalLimiter(t *testing.T) {
	cfg := config.RateLimitConfig{Capacity: 2, RefillTokens: 1, RefillInterval: time.Minute, TTL: time.Hour}
	l := newLocalLimiter(cfg)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, _, _ := l.take("k")
	assert.True(t, ok)
	ok, _, _ = l.take("k")
	assert.True(t, ok)
	ok, _, retry := l.take("k")
	assert.False(t, ok)
	assert.Greater(t, retry, int64(0))

	ok, _, _ = l.take("other")
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Minute)
	ok, _, _ = l.take("k")
	assert.True(t, ok, "one token refilled")
}

func TestTokenBucketFallbackWithoutRedis(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Fallback: true, Capacity: 1, RefillTokens: 1,
		RefillInterval: time.Hour, TTL: 5 * time.Hour, KeyStrategy: "ip", Prefix: "rl"}
	mw := NewTokenBucket(cfg, nil, zap.NewNop())

	c, rec := newContext(t, http.MethodGet, "/", "")
	require.NoError(t, mw(okHandler)(c))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	c, rec = newContext(t, http.MethodGet, "/", "")
	err := mw(okHandler)(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusTooManyRequests, he.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestBuildRateKey(t *testing.T) {
	c, _ := newContext(t, http.MethodPost, "/v1/auth/login", "")
	c.SetPath("/v1/auth/login")
	cfg := config.RateLimitConfig{Prefix: "rl:auth", KeyStrategy: "ip_route"}
	assert.Equal(t, "rl:auth:ip:192.0.2.1:route:POST /v1/auth/login", buildRateKey(cfg, c))

	c.Set(keyUserID, uint64(7))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:auth:user:7", buildRateKey(cfg, c))
}

func TestPayloadRoundTrip(t *testing.T) {
	h := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(201, h, []byte(`{"ok":true}`))
	require.NoError(t, err)
	status, hdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, 201, status)
	assert.Equal(t, "application/json", hdr.Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload([]byte{1, 2})
	assert.False(t, ok)
}

func TestRequestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	mw := RequestLogger(zap.New(core))

	c, rec := newContext(t, http.MethodGet, "/x", "")
	c.Echo().HTTPErrorHandler = func(err error, c echo.Context) { _ = c.NoContent(http.StatusNotFound) }
	require.NoError(t, mw(func(echo.Context) error { return apperr.NotFound("nope") })(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zap.WarnLevel, entry.Level)
	assert.Equal(t, int64(404), entry.ContextMap()["status"])
}
