package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/smart-parking/internal/model"
)

// ChatRepo persists chatbot sessions and message history.
type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo { return &ChatRepo{db: db} }

const chatSessionCols = `id, user_id, language, message_count, escalated, escalation_reason,
	satisfaction_rating, user_agent, ip_address, started_at, ended_at`

func scanChatSession(s rowScanner) (*model.ChatSession, error) {
	var (
		cs     model.ChatSession
		userID sql.NullInt64
		reason sql.NullString
		rating sql.NullInt64
		ended  sql.NullTime
	)
	err := s.Scan(&cs.ID, &userID, &cs.Language, &cs.MessageCount, &cs.Escalated, &reason,
		&rating, &cs.UserAgent, &cs.IPAddress, &cs.StartedAt, &ended)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	cs.UserID = nullUint(userID)
	cs.EscalationReason = nullString(reason)
	if rating.Valid {
		v := int(rating.Int64)
		cs.SatisfactionRating = &v
	}
	cs.EndedAt = nullTime(ended)
	return &cs, nil
}

// CreateSession inserts a session row; the id is generated by the caller.
func (r *ChatRepo) CreateSession(ctx context.Context, s *model.ChatSession) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO chat_sessions (id, user_id, language, user_agent, ip_address, started_at) VALUES (?,?,?,?,?,?)",
		s.ID, s.UserID, s.Language, s.UserAgent, s.IPAddress, s.StartedAt)
	return err
}

func (r *ChatRepo) GetSession(ctx context.Context, id string) (*model.ChatSession, error) {
	return scanChatSession(r.db.QueryRowContext(ctx, "SELECT "+chatSessionCols+" FROM chat_sessions WHERE id = ?", id))
}

// ActiveForUser returns the user's most recent open session.
func (r *ChatRepo) ActiveForUser(ctx context.Context, userID uint64) (*model.ChatSession, error) {
	return scanChatSession(r.db.QueryRowContext(ctx,
		"SELECT "+chatSessionCols+" FROM chat_sessions WHERE user_id = ? AND ended_at IS NULL ORDER BY started_at DESC LIMIT 1",
		userID))
}

// AppendMessage stores the exchange and bumps the session counters in
// one transaction.
func (r *ChatRepo) AppendMessage(ctx context.Context, m *model.ChatMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO chat_messages (session_id, user_id, message, response, intent, confidence, language)
		 VALUES (?,?,?,?,?,?,?)`,
		m.SessionID, m.UserID, m.Message, m.Response, m.Intent, m.Confidence, m.Language)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	if _, err := tx.ExecContext(ctx,
		"UPDATE chat_sessions SET message_count = message_count + 1, language = ? WHERE id = ?",
		m.Language, m.SessionID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// History returns a session's messages oldest first.
func (r *ChatRepo) History(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, message, response, intent, confidence, language, created_at
		 FROM (SELECT * FROM chat_messages WHERE session_id = ? ORDER BY id DESC LIMIT ?) t ORDER BY id ASC`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ChatMessage
	for rows.Next() {
		var (
			m      model.ChatMessage
			userID sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &userID, &m.Message, &m.Response, &m.Intent,
			&m.Confidence, &m.Language, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.UserID = nullUint(userID)
		out = append(out, m)
	}
	return out, rows.Err()
}

// End closes an open session.
func (r *ChatRepo) End(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, "UPDATE chat_sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL", at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetSession(ctx, id); err != nil {
			return err
		}
		return ErrNoChange
	}
	return nil
}

func (r *ChatRepo) Rate(ctx context.Context, id string, rating int) error {
	res, err := r.db.ExecContext(ctx, "UPDATE chat_sessions SET satisfaction_rating = ? WHERE id = ?", rating, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err := r.GetSession(ctx, id)
		return err
	}
	return nil
}

func (r *ChatRepo) Escalate(ctx context.Context, id, reason string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE chat_sessions SET escalated = 1, escalation_reason = ? WHERE id = ?", reason, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err := r.GetSession(ctx, id)
		return err
	}
	return nil
}

// Stats aggregates usage since the given time.
func (r *ChatRepo) Stats(ctx context.Context, since time.Time) (model.ChatStats, error) {
	var (
		s   model.ChatStats
		avg sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(ended_at IS NULL), 0), COALESCE(SUM(escalated = 1), 0), AVG(satisfaction_rating)
		 FROM chat_sessions WHERE started_at >= ?`, since).
		Scan(&s.TotalSessions, &s.ActiveSessions, &s.EscalatedCount, &avg)
	if err != nil {
		return s, err
	}
	s.AverageRating = avg.Float64

	rows, err := r.db.QueryContext(ctx,
		"SELECT intent, COUNT(*) FROM chat_messages WHERE created_at >= ? GROUP BY intent", since)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	s.IntentBreakdown = map[string]int{}
	for rows.Next() {
		var (
			intent string
			n      int
		)
		if err := rows.Scan(&intent, &n); err != nil {
			return s, err
		}
		s.IntentBreakdown[intent] = n
		s.TotalMessages += n
	}
	return s, rows.Err()
}
