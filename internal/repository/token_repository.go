package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrTokenInvalid covers unknown, expired and revoked refresh tokens.
var ErrTokenInvalid = errors.New("invalid refresh token")

// TokenRepo persists/validates refresh tokens (single 'token_hash' column).
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return err
}

// ValidateRefresh returns the owner of a live token or ErrTokenInvalid.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&userID, &expiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrTokenInvalid
	}
	if err != nil {
		return 0, err
	}
	if revokedAt.Valid || time.Now().UTC().After(expiresAt) {
		return 0, ErrTokenInvalid
	}
	return userID, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	return err
}

// RevokeAllForUser revokes all user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return err
}

// OTPRepo stores one-time login codes.
type OTPRepo struct{ DB *sql.DB }

func NewOTPRepo(db *sql.DB) *OTPRepo { return &OTPRepo{DB: db} }

// Issue invalidates earlier codes for contact and stores a new one.
func (r *OTPRepo) Issue(ctx context.Context, contact, code string, exp time.Time) error {
	if _, err := r.DB.ExecContext(ctx, "UPDATE otp_codes SET used = 1 WHERE contact = ? AND used = 0", contact); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO otp_codes (contact, code, expires_at) VALUES (?,?,?)", contact, code, exp)
	return err
}

// Consume marks a matching unexpired code used. It returns
// ErrOTPNotFound when no such code exists.
func (r *OTPRepo) Consume(ctx context.Context, contact, code string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE otp_codes SET used = 1 WHERE contact = ? AND code = ? AND used = 0 AND expires_at > ?",
		contact, code, now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOTPNotFound
	}
	return nil
}

// Purge deletes used or expired codes and expired refresh tokens.
func (r *OTPRepo) Purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM otp_codes WHERE used = 1 OR expires_at < ?", now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	res, err = r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at < ?", now)
	if err != nil {
		return n, err
	}
	m, _ := res.RowsAffected()
	return n + m, nil
}
