package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/smart-parking/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = `id, email, username, full_name, phone, password_hash, role, status, officer_badge_id,
	department, is_verified, verified_at, last_login, created_at, updated_at`

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u                     model.User
		phone, badge, dept    sql.NullString
		verifiedAt, lastLogin sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Email, &u.Username, &u.FullName, &phone, &u.PasswordHash, &u.Role,
		&u.Status, &badge, &dept, &u.IsVerified, &verifiedAt, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.Phone = nullString(phone)
	u.OfficerBadgeID = nullString(badge)
	u.Department = nullString(dept)
	u.VerifiedAt = nullTime(verifiedAt)
	u.LastLogin = nullTime(lastLogin)
	return &u, nil
}

// CreateTx inserts u (PasswordHash already computed) and sets its ID.
// Duplicate emails and usernames map to their own sentinels.
func (r *UserRepo) CreateTx(ctx context.Context, tx *sql.Tx, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (email, username, full_name, phone, password_hash, role, status, officer_badge_id, department, is_verified, verified_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		u.Email, u.Username, u.FullName, u.Phone, u.PasswordHash, u.Role, u.Status,
		u.OfficerBadgeID, u.Department, u.IsVerified, u.VerifiedAt)
	if err != nil {
		if isDuplicate(err) {
			if strings.Contains(duplicateKey(err), "username") {
				return ErrUsernameExists
			}
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByLogin looks a user up by email or username.
func (r *UserRepo) GetByLogin(ctx context.Context, identifier string) (*model.User, error) {
	id := strings.TrimSpace(identifier)
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email = ? OR username = ? LIMIT 1",
		strings.ToLower(id), id))
}

// GetByContact looks a user up by email or phone, as used by OTP login.
func (r *UserRepo) GetByContact(ctx context.Context, contact string) (*model.User, error) {
	c := strings.TrimSpace(contact)
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email = ? OR phone = ? LIMIT 1",
		strings.ToLower(c), c))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, "SELECT "+userCols+" FROM users WHERE id = ?", id))
}

// Exists reports whether the email or username is taken.
func (r *UserRepo) Exists(ctx context.Context, email, username string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE email = ? OR username = ?",
		strings.ToLower(strings.TrimSpace(email)), strings.TrimSpace(username)).Scan(&n)
	return n > 0, err
}

// UpdateProfile sets name and phone.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, fullName string, phone *string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET full_name = ?, phone = ? WHERE id = ?", fullName, phone, id)
	return err
}

func (r *UserRepo) TouchLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET last_login = ? WHERE id = ?", at, id)
	return err
}

// MarkVerified flags the account verified, keeping the first timestamp.
func (r *UserRepo) MarkVerified(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_verified = 1, verified_at = COALESCE(verified_at, ?) WHERE id = ?", at, id)
	return err
}

// BadgeRepo reads the officer badge whitelist.
type BadgeRepo struct{ DB *sql.DB }

func NewBadgeRepo(db *sql.DB) *BadgeRepo { return &BadgeRepo{DB: db} }

// LockTx returns whether the badge has been claimed, locking its row.
func (r *BadgeRepo) LockTx(ctx context.Context, tx *sql.Tx, badgeID string) (claimed bool, err error) {
	err = tx.QueryRowContext(ctx,
		"SELECT is_claimed FROM valid_officer_badges WHERE badge_id = ? FOR UPDATE", badgeID).Scan(&claimed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrBadgeNotFound
	}
	return claimed, err
}

func (r *BadgeRepo) ClaimTx(ctx context.Context, tx *sql.Tx, badgeID string, userID uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE valid_officer_badges SET is_claimed = 1, claimed_by = ? WHERE badge_id = ?", userID, badgeID)
	return err
}
