package model

import "time"

// Roles.
const (
	RoleAdmin      = "admin"
	RoleOfficer    = "officer"
	RoleContractor = "contractor"
	RoleViewer     = "viewer"
	RoleUser       = "user"
)

// User account statuses.
const (
	UserActive    = "active"
	UserSuspended = "suspended"
	UserInactive  = "inactive"
)

// User represents an application user record as stored in the
// `users` table. Handlers never expose it directly; dto.FromUser
// strips the password hash.
//
// Fields:
//
//	Email, Username – both unique, either one can be used to log in.
//	PasswordHash    – bcrypt hash.
//	Role            – admin, officer, contractor, viewer or user.
//	Status          – only active users may log in.
//	OfficerBadgeID  – whitelisted badge, officers only.
//	IsVerified      – set by OTP verification.
type User struct {
	ID             uint64
	Email          string
	Username       string
	FullName       string
	Phone          *string
	PasswordHash   string
	Role           string
	Status         string
	OfficerBadgeID *string
	Department     *string
	IsVerified     bool
	VerifiedAt     *time.Time
	LastLogin      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the token is stored.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// OTPCode is a one-time login code sent to an email or phone.
type OTPCode struct {
	ID        uint64
	Contact   string
	Code      string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}
