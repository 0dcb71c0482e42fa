package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/config"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/repository"
	"github.com/iliyamo/smart-parking/internal/utils"
)

// AuthService issues and revokes credentials. Access tokens are HS256
// JWTs; refresh tokens are random strings stored as SHA-256 hashes.
type AuthService struct {
	db     *sql.DB
	cfg    config.Config
	users  *repository.UserRepo
	badges *repository.BadgeRepo
	tokens *repository.TokenRepo
	otps   *repository.OTPRepo
	log    *zap.Logger
	now    func() time.Time
}

func NewAuthService(db *sql.DB, cfg config.Config, users *repository.UserRepo, badges *repository.BadgeRepo,
	tokens *repository.TokenRepo, otps *repository.OTPRepo, log *zap.Logger) *AuthService {
	return &AuthService{
		db:     db,
		cfg:    cfg,
		users:  users,
		badges: badges,
		tokens: tokens,
		otps:   otps,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Session is a user with a fresh token pair.
type Session struct {
	User    *model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// Registration is the sign-up form.
type Registration struct {
	FullName   string
	Email      string
	Username   string
	Password   string
	Phone      *string
	Role       string
	BadgeID    string
	Department string
}

var selfServiceRoles = map[string]bool{
	model.RoleOfficer:    true,
	model.RoleContractor: true,
	model.RoleViewer:     true,
	model.RoleUser:       true,
}

// Register creates an account. Unknown roles fall back to viewer, admin
// cannot be self-assigned. Officers must present an unclaimed badge from
// the whitelist and are verified on the spot.
func (s *AuthService) Register(ctx context.Context, r Registration) (*Session, error) {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.TrimSpace(r.Username)
	r.FullName = strings.TrimSpace(r.FullName)
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		return nil, apperr.Validation("A valid email is required")
	}
	if r.FullName == "" {
		return nil, apperr.Validation("Full name is required")
	}
	if err := utils.CheckPasswordStrength(r.Password); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if r.Username == "" {
		r.Username = r.Email[:strings.Index(r.Email, "@")]
	}
	role := strings.ToLower(strings.TrimSpace(r.Role))
	if !selfServiceRoles[role] {
		role = model.RoleViewer
	}
	badge := strings.TrimSpace(r.BadgeID)
	dept := strings.TrimSpace(r.Department)
	if role == model.RoleOfficer {
		if badge == "" {
			return nil, apperr.Validation("Officer Badge ID is required for officer registration")
		}
		if dept == "" {
			return nil, apperr.Validation("Department is required for officer registration")
		}
	}

	taken, err := s.users.Exists(ctx, r.Email, r.Username)
	if err != nil {
		return nil, apperr.Internal("could not check user", err)
	}
	if taken {
		return nil, apperr.Conflict("User with this email or username already exists")
	}

	hash, err := utils.HashPassword(r.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, apperr.Internal("could not hash password", err)
	}
	u := &model.User{
		Email:        r.Email,
		Username:     r.Username,
		FullName:     r.FullName,
		Phone:        r.Phone,
		PasswordHash: hash,
		Role:         role,
		Status:       model.UserActive,
	}
	if role == model.RoleOfficer {
		at := s.now()
		u.OfficerBadgeID, u.Department = &badge, &dept
		u.IsVerified, u.VerifiedAt = true, &at
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if role == model.RoleOfficer {
			claimed, err := s.badges.LockTx(ctx, tx, badge)
			if errors.Is(err, repository.ErrBadgeNotFound) {
				return apperr.Authentication("Unauthorized Badge ID. Please contact Admin.")
			}
			if err != nil {
				return apperr.Internal("could not check badge", err)
			}
			if claimed {
				return apperr.Conflict("This Badge ID has already been claimed by another officer.")
			}
		}
		if err := s.users.CreateTx(ctx, tx, u); err != nil {
			if errors.Is(err, repository.ErrEmailExists) || errors.Is(err, repository.ErrUsernameExists) {
				return apperr.Conflict("User with this email or username already exists")
			}
			return apperr.Internal("could not create user", err)
		}
		if role == model.RoleOfficer {
			if err := s.badges.ClaimTx(ctx, tx, badge, u.ID); err != nil {
				return apperr.Internal("could not claim badge", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.Uint64("user_id", u.ID), zap.String("role", role))
	return s.issue(ctx, u)
}

// Login accepts an email or a username.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, apperr.Validation("Email or username and password are required")
	}
	u, err := s.users.GetByLogin(ctx, identifier)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.Authentication("Invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal("could not load user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, apperr.Authentication("Invalid credentials")
	}
	if u.Status != model.UserActive {
		return nil, apperr.Authentication(fmt.Sprintf("Your account is %s. Please contact support.", u.Status))
	}
	at := s.now()
	if err := s.users.TouchLogin(ctx, u.ID, at); err != nil {
		s.log.Warn("last login not recorded", zap.Uint64("user_id", u.ID), zap.Error(err))
	}
	u.LastLogin = &at
	return s.issue(ctx, u)
}

// Refresh rotates a refresh token: the old one is revoked and a new pair
// is issued.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*Session, error) {
	u, hash, err := s.refreshOwner(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return nil, apperr.Internal("could not revoke token", err)
	}
	return s.issue(ctx, u)
}

// RefreshAccess returns a new access token and keeps the refresh token.
func (s *AuthService) RefreshAccess(ctx context.Context, raw string) (utils.AccessToken, error) {
	u, _, err := s.refreshOwner(ctx, raw)
	if err != nil {
		return utils.AccessToken{}, err
	}
	tok, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return utils.AccessToken{}, apperr.Internal("could not issue token", err)
	}
	return tok, nil
}

func (s *AuthService) refreshOwner(ctx context.Context, raw string) (*model.User, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "", apperr.Validation("refresh_token required")
	}
	hash := utils.HashRefreshRaw(raw)
	uid, err := s.tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrTokenInvalid) {
		return nil, "", apperr.Authentication("Session expired. Please login again.")
	}
	if err != nil {
		return nil, "", apperr.Internal("could not validate token", err)
	}
	u, err := s.users.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, "", apperr.Authentication("Session expired. Please login again.")
	}
	if err != nil {
		return nil, "", apperr.Internal("could not load user", err)
	}
	if u.Status != model.UserActive {
		return nil, "", apperr.Authentication(fmt.Sprintf("Your account is %s. Please contact support.", u.Status))
	}
	return u, hash, nil
}

// Logout revokes one refresh token, or every token of userID when raw
// is empty.
func (s *AuthService) Logout(ctx context.Context, userID uint64, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := s.tokens.ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrTokenInvalid) {
				return apperr.Authentication("invalid refresh token")
			}
			return apperr.Internal("could not validate token", err)
		}
		return internal("logout failed", s.tokens.RevokeByHash(ctx, hash))
	}
	if userID == 0 {
		return apperr.Validation("provide Authorization header or refresh_token")
	}
	return internal("logout failed", s.tokens.RevokeAllForUser(ctx, userID))
}

func (s *AuthService) Profile(ctx context.Context, userID uint64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	return u, internal("could not load user", err)
}

// UpdateProfile changes name and phone; empty values keep the old ones.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uint64, fullName string, phone *string) (*model.User, error) {
	u, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if n := strings.TrimSpace(fullName); n != "" {
		u.FullName = n
	}
	if phone != nil && strings.TrimSpace(*phone) != "" {
		p := strings.TrimSpace(*phone)
		u.Phone = &p
	}
	if err := s.users.UpdateProfile(ctx, u.ID, u.FullName, u.Phone); err != nil {
		return nil, apperr.Internal("could not update profile", err)
	}
	return u, nil
}

// RequestOTP issues a one-time code for an existing user. Delivery is
// not wired up yet, so the code is written to the log.
func (s *AuthService) RequestOTP(ctx context.Context, contact string) error {
	contact = normalizeContact(contact)
	if contact == "" {
		return apperr.Validation("Email or phone number is required")
	}
	if _, err := s.users.GetByContact(ctx, contact); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal("could not load user", err)
	}
	code, err := utils.NewOTP()
	if err != nil {
		return apperr.Internal("could not generate code", err)
	}
	exp := s.now().Add(time.Duration(s.cfg.OTPTTLMin) * time.Minute)
	if err := s.otps.Issue(ctx, contact, code, exp); err != nil {
		return apperr.Internal("could not store code", err)
	}
	s.log.Info("otp issued", zap.String("contact", contact), zap.String("otp", code), zap.Time("expires", exp))
	return nil
}

// VerifyOTP consumes a code, marks the account verified and logs the
// user in.
func (s *AuthService) VerifyOTP(ctx context.Context, contact, code string) (*Session, error) {
	contact = normalizeContact(contact)
	code = strings.TrimSpace(code)
	if contact == "" || code == "" {
		return nil, apperr.Validation("Contact and OTP are required")
	}
	u, err := s.users.GetByContact(ctx, contact)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load user", err)
	}
	now := s.now()
	if err := s.otps.Consume(ctx, contact, code, now); err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return nil, apperr.Authentication("Invalid or expired OTP")
		}
		return nil, apperr.Internal("could not verify code", err)
	}
	if err := s.users.MarkVerified(ctx, u.ID, now); err != nil {
		return nil, apperr.Internal("could not verify user", err)
	}
	u.IsVerified = true
	if u.VerifiedAt == nil {
		u.VerifiedAt = &now
	}
	return s.issue(ctx, u)
}

func (s *AuthService) issue(ctx context.Context, u *model.User) (*Session, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return nil, apperr.Internal("could not issue token", err)
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return nil, apperr.Internal("could not issue token", err)
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, apperr.Internal("could not store token", err)
	}
	return &Session{User: u, Access: access, Refresh: refresh}, nil
}

func normalizeContact(c string) string {
	c = strings.TrimSpace(c)
	if strings.Contains(c, "@") {
		return strings.ToLower(c)
	}
	return c
}
