package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/handler"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/utils"
)

const testSecret = "router-test-secret"

// newTestServer mounts the API with handlers that are never reached:
// every request in these tests is stopped by middleware first.
func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = handler.HTTPErrorHandler(zap.NewNop())
	Register(e, Handlers{
		Health:     &handler.HealthHandler{},
		Auth:       &handler.AuthHandler{},
		Zones:      &handler.ZoneHandler{},
		Violations: &handler.ViolationHandler{},
		Wallet:     &handler.WalletHandler{},
		Vehicles:   &handler.VehicleHandler{},
		Bookings:   &handler.BookingHandler{},
		Chat:       &handler.ChatHandler{},
	}, Options{JWTSecret: testSecret, Log: zap.NewNop()})
	return e
}

func bearerFor(t *testing.T, role string) string {
	t.Helper()
	at, err := utils.NewAccessToken(testSecret, 11, role, 5)
	require.NoError(t, err)
	return "Bearer " + at.Token
}

func TestRoutesRegistered(t *testing.T) {
	e := newTestServer(t)
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"POST /v1/auth/login",
		"POST /v1/auth/otp/verify",
		"PATCH /v1/me",
		"GET /v1/zones",
		"PATCH /v1/zones/:id/occupancy",
		"GET /v1/zones/check/violations",
		"GET /v1/violations/export",
		"PATCH /v1/violations/:id/resolve",
		"POST /v1/wallet/topup",
		"GET /v1/wallet/verify",
		"PUT /v1/vehicles/:id",
		"GET /v1/bookings/availability",
		"POST /v1/bookings/subscription/:id/cancel",
		"POST /v1/chatbot/message",
		"GET /v1/chatbot/stats",
	} {
		assert.True(t, have[want], want)
	}
}

func TestAccessControl(t *testing.T) {
	e := newTestServer(t)
	cases := []struct {
		name   string
		method string
		path   string
		role   string
		status int
	}{
		{"wallet needs token", http.MethodGet, "/v1/wallet/balance", "", http.StatusUnauthorized},
		{"viewer cannot delete zone", http.MethodDelete, "/v1/zones/3", model.RoleViewer, http.StatusForbidden},
		{"officer cannot delete violation", http.MethodDelete, "/v1/violations/3", model.RoleOfficer, http.StatusForbidden},
		{"user cannot move occupancy", http.MethodPatch, "/v1/zones/3/occupancy", model.RoleUser, http.StatusForbidden},
		{"viewer cannot export", http.MethodGet, "/v1/violations/export", model.RoleViewer, http.StatusForbidden},
		{"chat stats admin only", http.MethodGet, "/v1/chatbot/stats", model.RoleOfficer, http.StatusForbidden},
		{"active chat needs token", http.MethodGet, "/v1/chatbot/sessions/active", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.role != "" {
				req.Header.Set(echo.HeaderAuthorization, bearerFor(t, tc.role))
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}
}
