package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/smart-parking/internal/model"
)

// AuditRepo stores domain events consumed from the queue.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Insert stores a log entry. Redelivered events carry the same event id
// and are ignored.
func (r *AuditRepo) Insert(ctx context.Context, a *model.AuditLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO audit_logs (event_id, event_type, entity, entity_id, user_id, payload, occurred_at)
		 VALUES (?,?,?,?,?,?,?)`,
		a.EventID, a.EventType, a.Entity, a.EntityID, a.UserID, a.Payload, a.OccurredAt)
	return err
}
