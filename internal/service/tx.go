// Package service holds the business rules of the parking backend. It
// sits between the echo handlers and the repositories, owns transaction
// boundaries and reports failures as apperr kinds.
package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/smart-parking/internal/apperr"
)

// withTx runs fn inside a transaction and commits when fn succeeds.
// Any error from fn rolls everything back.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Internal("could not start transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Internal("could not commit transaction", err)
	}
	committed = true
	return nil
}

// internal wraps an unclassified error; classified errors pass through.
func internal(msg string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal(msg, err)
}
