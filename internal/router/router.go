package router // package router wires handlers and middleware onto echo

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/config"
	"github.com/iliyamo/smart-parking/internal/handler"
	"github.com/iliyamo/smart-parking/internal/middleware"
	"github.com/iliyamo/smart-parking/internal/model"
)

// Handlers groups every HTTP handler the API exposes.
type Handlers struct {
	Health     *handler.HealthHandler
	Auth       *handler.AuthHandler
	Zones      *handler.ZoneHandler
	Violations *handler.ViolationHandler
	Wallet     *handler.WalletHandler
	Vehicles   *handler.VehicleHandler
	Bookings   *handler.BookingHandler
	Chat       *handler.ChatHandler
}

// Options carries what the middleware chain needs. Redis may be nil; the
// limiter then runs in-process and cache and replay are skipped.
type Options struct {
	JWTSecret     string
	Redis         *redis.Client
	RateLimit     config.RateLimitConfig
	AuthRateLimit config.RateLimitConfig
	Cache         config.CacheConfig
	Idempotency   config.IdempotencyConfig
	Log           *zap.Logger
}

// Register mounts the whole API on e.
func Register(e *echo.Echo, h Handlers, o Options) {
	e.GET("/healthz", h.Health.Health)

	jwt := middleware.JWTAuth(o.JWTSecret)
	optional := middleware.OptionalJWT(o.JWTSecret)
	idem := middleware.NewIdempotency(o.Idempotency, o.Redis)
	staff := middleware.RequireRole(model.RoleAdmin, model.RoleOfficer)
	admin := middleware.RequireRole(model.RoleAdmin)

	v1 := e.Group("/v1", middleware.NewTokenBucket(o.RateLimit, o.Redis, o.Log))

	registerAuth(v1, h.Auth, jwt, optional, middleware.NewTokenBucket(o.AuthRateLimit, o.Redis, o.Log))

	// Zones: reads are public and cached per caller.
	z := v1.Group("/zones")
	cached := []echo.MiddlewareFunc{optional, middleware.NewRedisCache(o.Cache, o.Redis)}
	z.GET("", h.Zones.List, cached...)
	z.GET("/:id", h.Zones.Get, cached...)
	z.GET("/:id/slots", h.Zones.Slots, cached...)
	z.GET("/stats/overview", h.Zones.Stats, jwt, staff)
	z.GET("/check/violations", h.Zones.CheckViolations, jwt, staff)
	z.POST("", h.Zones.Create, jwt, admin)
	z.PUT("/:id", h.Zones.Update, jwt, middleware.RequireRole(model.RoleAdmin, model.RoleOfficer, model.RoleContractor))
	z.DELETE("/:id", h.Zones.Delete, jwt, admin)
	z.PATCH("/:id/occupancy", h.Zones.UpdateOccupancy, jwt,
		middleware.RequireRole(model.RoleAdmin, model.RoleOfficer, model.RoleContractor))

	vi := v1.Group("/violations", jwt)
	vi.GET("", h.Violations.List)
	vi.GET("/stats", h.Violations.Stats, staff)
	vi.GET("/export", h.Violations.Export, staff)
	vi.GET("/:id", h.Violations.Get)
	vi.POST("", h.Violations.Create, staff)
	vi.PATCH("/:id/resolve", h.Violations.Resolve, staff)
	vi.DELETE("/:id", h.Violations.Delete, admin)

	w := v1.Group("/wallet", jwt)
	w.GET("/balance", h.Wallet.Balance)
	w.POST("/topup", h.Wallet.TopUp, idem)
	w.GET("/transactions", h.Wallet.Transactions)
	w.GET("/verify", h.Wallet.Verify)

	ve := v1.Group("/vehicles", jwt)
	ve.POST("", h.Vehicles.Add)
	ve.GET("", h.Vehicles.List)
	ve.PUT("/:id", h.Vehicles.Update)
	ve.DELETE("/:id", h.Vehicles.Delete)

	b := v1.Group("/bookings", jwt)
	b.POST("", h.Bookings.Create, idem)
	b.GET("/mine", h.Bookings.Mine)
	b.GET("/availability", h.Bookings.Availability)
	b.POST("/:id/scan", h.Bookings.Scan)
	b.POST("/:id/cancel", h.Bookings.Cancel, idem)
	b.POST("/subscription", h.Bookings.Purchase, idem)
	b.GET("/subscriptions/mine", h.Bookings.MyPasses)
	b.POST("/subscription/:id/scan", h.Bookings.ScanPass)
	b.POST("/subscription/:id/cancel", h.Bookings.CancelPass, idem)

	// The assistant answers anonymous callers too.
	c := v1.Group("/chatbot", optional)
	c.POST("/message", h.Chat.Send)
	c.GET("/sessions/active", h.Chat.Active, jwt)
	c.GET("/sessions/:session_id/history", h.Chat.History)
	c.POST("/sessions/:session_id/end", h.Chat.End)
	c.POST("/sessions/:session_id/rate", h.Chat.Rate)
	c.POST("/sessions/:session_id/escalate", h.Chat.Escalate)
	c.GET("/stats", h.Chat.Stats, jwt, admin)
}

// registerAuth mounts /v1/auth behind its own stricter limiter, and the
// profile endpoints behind JWT.
func registerAuth(v1 *echo.Group, a *handler.AuthHandler, jwt, optional, limiter echo.MiddlewareFunc) {
	g := v1.Group("/auth", limiter)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout needs only a refresh token. With a bearer token and no body
	// it revokes every session of the user.
	g.POST("/logout", a.Logout, optional)
	g.POST("/otp/request", a.RequestOTP)
	g.POST("/otp/verify", a.VerifyOTP)

	v1.GET("/me", a.Me, jwt)
	v1.PATCH("/me", a.UpdateMe, jwt)
}
