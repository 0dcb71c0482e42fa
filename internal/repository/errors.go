// Package repository holds the MySQL data access layer. Repositories
// return the sentinel values below instead of driver errors so that
// services can translate them into apperr kinds without looking at SQL.
//
// Write paths that must commit together with other writes come in a
// Tx flavour taking the caller's *sql.Tx.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write collides with existing state,
// usually a unique key.
var ErrConflict = errors.New("conflict")

// ErrNoChange is returned by updates that matched a row but had nothing
// to change, such as resolving an already resolved violation.
var ErrNoChange = errors.New("no change")

var (
	ErrZoneNotFound      = errors.New("zone not found")
	ErrSlotNotFound      = errors.New("slot not found")
	ErrViolationNotFound = errors.New("violation not found")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrPassNotFound      = errors.New("pass not found")
	ErrVehicleNotFound   = errors.New("vehicle not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrOTPNotFound       = errors.New("otp not found")
	ErrBadgeNotFound     = errors.New("badge not found")
	ErrSessionNotFound   = errors.New("chat session not found")
)

var (
	ErrEmailExists    = errors.New("email already exists")
	ErrUsernameExists = errors.New("username already exists")
	ErrPlateExists    = errors.New("license plate already registered")
)

// isDuplicate reports a MySQL duplicate key violation (error 1062).
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(strings.ToLower(err.Error()), "1062")
}

// duplicateKey extracts the key name MySQL reports in a 1062 message,
// e.g. "uq_users_email".
func duplicateKey(err error) string {
	msg := err.Error()
	i := strings.LastIndex(msg, "for key '")
	if i < 0 {
		return ""
	}
	key := strings.TrimSuffix(msg[i+len("for key '"):], "'")
	if j := strings.LastIndex(key, "."); j >= 0 {
		key = key[j+1:]
	}
	return key
}
