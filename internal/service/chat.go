package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/chatbot"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/repository"
	"github.com/iliyamo/smart-parking/internal/utils"
)

// ChatService persists chatbot sessions and messages around the engine.
type ChatService struct {
	engine *chatbot.Engine
	chats  *repository.ChatRepo
	maxLen int
	log    *zap.Logger
	now    func() time.Time
}

func NewChatService(engine *chatbot.Engine, chats *repository.ChatRepo, maxLen int, log *zap.Logger) *ChatService {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &ChatService{engine: engine, chats: chats, maxLen: maxLen, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// ChatRequest is one user message. UserID is nil for anonymous callers.
type ChatRequest struct {
	SessionID string
	UserID    *uint64
	Message   string
	UserAgent string
	IPAddress string
}

// ChatResult is the stored message together with the reply.
type ChatResult struct {
	SessionID string
	Message   model.ChatMessage
	Reply     chatbot.Reply
}

// Send answers a message, opening a session when none is given.
func (s *ChatService) Send(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, apperr.Validation("Message cannot be empty")
	}
	if utf8.RuneCountInString(msg) > s.maxLen {
		return nil, apperr.Validation("Message too long (max 1000 characters)")
	}

	var sess *model.ChatSession
	if req.SessionID != "" {
		var err error
		if sess, err = s.session(ctx, req.SessionID, req.UserID, false); err != nil {
			return nil, err
		}
		if sess.EndedAt != nil {
			return nil, apperr.Validation("Chat session has ended")
		}
	} else {
		sess = &model.ChatSession{
			ID:        utils.NewSessionID(),
			UserID:    req.UserID,
			Language:  chatbot.DetectLanguage(msg),
			UserAgent: truncate(req.UserAgent, 255),
			IPAddress: truncate(req.IPAddress, 64),
			StartedAt: s.now(),
		}
		if err := s.chats.CreateSession(ctx, sess); err != nil {
			return nil, apperr.Internal("could not start chat session", err)
		}
	}

	reply := s.engine.Process(ctx, sess.ID, msg)
	m := model.ChatMessage{
		SessionID:  sess.ID,
		UserID:     req.UserID,
		Message:    msg,
		Response:   reply.Response,
		Intent:     reply.Intent,
		Confidence: reply.Confidence,
		Language:   reply.Language,
		CreatedAt:  s.now(),
	}
	if err := s.chats.AppendMessage(ctx, &m); err != nil {
		return nil, apperr.Internal("could not store chat message", err)
	}
	return &ChatResult{SessionID: sess.ID, Message: m, Reply: reply}, nil
}

// session loads a session the caller may see. Sessions opened by a
// signed-in user are private to that user unless admin is set.
func (s *ChatService) session(ctx context.Context, id string, userID *uint64, admin bool) (*model.ChatSession, error) {
	sess, err := s.chats.GetSession(ctx, id)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, apperr.NotFound("Chat session not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load chat session", err)
	}
	if sess.UserID != nil && !admin && (userID == nil || *userID != *sess.UserID) {
		return nil, apperr.NotFound("Chat session not found")
	}
	return sess, nil
}

// History returns up to limit messages of a session, oldest first.
func (s *ChatService) History(ctx context.Context, actor Actor, id string, limit int) (*model.ChatSession, []model.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	uid := actor.UserID
	sess, err := s.session(ctx, id, &uid, actor.Role == model.RoleAdmin)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.chats.History(ctx, sess.ID, limit)
	if err != nil {
		return nil, nil, apperr.Internal("could not load chat history", err)
	}
	return sess, msgs, nil
}

// Active returns the caller's open session and its last ten messages,
// or nil when there is none.
func (s *ChatService) Active(ctx context.Context, userID uint64) (*model.ChatSession, []model.ChatMessage, error) {
	sess, err := s.chats.ActiveForUser(ctx, userID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, apperr.Internal("could not load chat session", err)
	}
	msgs, err := s.chats.History(ctx, sess.ID, 10)
	if err != nil {
		return nil, nil, apperr.Internal("could not load chat history", err)
	}
	return sess, msgs, nil
}

// End closes a session and drops its conversation context.
func (s *ChatService) End(ctx context.Context, actor Actor, id string) error {
	uid := actor.UserID
	sess, err := s.session(ctx, id, &uid, actor.Role == model.RoleAdmin)
	if err != nil {
		return err
	}
	switch err := s.chats.End(ctx, sess.ID, s.now()); {
	case errors.Is(err, repository.ErrNoChange):
		return apperr.Validation("Chat session has already ended")
	case err != nil:
		return apperr.Internal("could not end chat session", err)
	}
	if err := s.engine.Forget(ctx, sess.ID); err != nil {
		s.log.Warn("chat context not dropped", zap.String("session_id", sess.ID), zap.Error(err))
	}
	return nil
}

func (s *ChatService) Rate(ctx context.Context, actor Actor, id string, rating int) error {
	if rating < 1 || rating > 5 {
		return apperr.Validation("Rating must be between 1 and 5")
	}
	uid := actor.UserID
	sess, err := s.session(ctx, id, &uid, false)
	if err != nil {
		return err
	}
	return internal("could not rate chat session", s.chats.Rate(ctx, sess.ID, rating))
}

// Escalate flags a session for a human agent.
func (s *ChatService) Escalate(ctx context.Context, actor Actor, id, reason string) error {
	uid := actor.UserID
	sess, err := s.session(ctx, id, &uid, false)
	if err != nil {
		return err
	}
	reason = truncate(strings.TrimSpace(reason), 500)
	if reason == "" {
		reason = "Requested by user"
	}
	if err := s.chats.Escalate(ctx, sess.ID, reason); err != nil {
		return apperr.Internal("could not escalate chat session", err)
	}
	s.log.Info("chat escalated", zap.String("session_id", sess.ID), zap.String("reason", reason))
	return nil
}

// Stats covers the last days days; zero means all time.
func (s *ChatService) Stats(ctx context.Context, days int) (model.ChatStats, error) {
	var since time.Time
	if days > 0 {
		since = s.now().AddDate(0, 0, -days)
	}
	st, err := s.chats.Stats(ctx, since)
	return st, internal("could not load chat stats", err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
