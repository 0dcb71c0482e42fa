package model

import "time"

// ChatSession is the persisted record of a chatbot conversation. The
// short-lived conversational context lives in a chatbot.SessionStore.
type ChatSession struct {
	ID                 string
	UserID             *uint64
	Language           string
	MessageCount       int
	Escalated          bool
	EscalationReason   *string
	SatisfactionRating *int
	UserAgent          string
	IPAddress          string
	StartedAt          time.Time
	EndedAt            *time.Time
}

// ChatMessage stores one user message together with the bot reply.
type ChatMessage struct {
	ID         uint64
	SessionID  string
	UserID     *uint64
	Message    string
	Response   string
	Intent     string
	Confidence float64
	Language   string
	CreatedAt  time.Time
}

// ChatStats aggregates chatbot usage for admins.
type ChatStats struct {
	TotalSessions   int
	ActiveSessions  int
	EscalatedCount  int
	TotalMessages   int
	AverageRating   float64
	IntentBreakdown map[string]int
}

// AuditLog is a domain event persisted by the queue consumer.
type AuditLog struct {
	ID         uint64
	EventID    string
	EventType  string
	Entity     string
	EntityID   uint64
	UserID     *uint64
	Payload    []byte
	OccurredAt time.Time
	CreatedAt  time.Time
}
