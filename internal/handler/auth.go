package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smart-parking/internal/dto"
	"github.com/iliyamo/smart-parking/internal/middleware"
	"github.com/iliyamo/smart-parking/internal/service"
)

// AuthHandler serves /v1/auth and /v1/me.
type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register creates the account and returns a token pair immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.auth.Register(ctx, req.Registration())
	if err != nil {
		return err
	}
	return created(c, dto.FromSession(s), "Registration successful")
}

// Login accepts an email or username.
func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.auth.Login(ctx, req.Login(), req.Password)
	if err != nil {
		return err
	}
	return done(c, dto.FromSession(s), "Login successful")
}

// Refresh rotates the refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req dto.RefreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return ok(c, dto.FromSession(s))
}

// RefreshAccess issues a new access token and keeps the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req dto.RefreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	at, err := h.auth.RefreshAccess(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"access": dto.TokenResponse{Token: at.Token, Expires: at.Exp}})
}

// Logout revokes the given refresh token, or all of the caller's tokens
// when the body has none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req dto.RefreshRequest
	_ = c.Bind(&req)
	uid, _ := middleware.UserID(c)

	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.auth.Logout(ctx, uid, req.RefreshToken); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) RequestOTP(c echo.Context) error {
	var req dto.OTPRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.auth.RequestOTP(ctx, req.Contact); err != nil {
		return err
	}
	return done(c, nil, "OTP sent successfully")
}

func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req dto.OTPVerifyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.auth.VerifyOTP(ctx, req.Contact, req.Code)
	if err != nil {
		return err
	}
	return done(c, dto.FromSession(s), "OTP verified")
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.auth.Profile(ctx, uid)
	if err != nil {
		return err
	}
	return ok(c, dto.FromUser(u))
}

func (h *AuthHandler) UpdateMe(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req dto.ProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.auth.UpdateProfile(ctx, uid, req.FullName, req.Phone)
	if err != nil {
		return err
	}
	return done(c, dto.FromUser(u), "Profile updated")
}
