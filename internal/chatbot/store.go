package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Turn is one entry of the conversation history.
type Turn struct {
	Role string `json:"role"` // "user" or "bot"
	Text string `json:"text"`
}

// Context is what the assistant remembers about a session between
// messages. Losing it only costs conversational memory.
type Context struct {
	LastIntent   string    `json:"last_intent"`
	Language     string    `json:"language"`
	History      []Turn    `json:"history"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionStore keeps Context per session id and forgets it after a TTL
// of inactivity. Get reports found=false for unknown or expired ids.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (c Context, found bool, err error)
	Put(ctx context.Context, sessionID string, c Context) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore is a process-local SessionStore. Expired entries are
// invisible to Get immediately and removed by Sweep.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	items map[string]memEntry
}

type memEntry struct {
	ctx     Context
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, items: make(map[string]memEntry)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (Context, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok || !s.now().Before(e.expires) {
		return Context{}, false, nil
	}
	return e.ctx, true, nil
}

func (s *MemoryStore) Put(_ context.Context, id string, c Context) error {
	s.mu.Lock()
	s.items[id] = memEntry{ctx: c, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.items {
		if !now.Before(e.expires) {
			delete(s.items, id)
			n++
		}
	}
	return n
}

// Len is the number of entries held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// RedisStore keeps contexts as JSON under prefix:sessionID with a
// redis expiry, so every Put extends the TTL.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string { return s.prefix + ":" + id }

func (s *RedisStore) Get(ctx context.Context, id string) (Context, bool, error) {
	b, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Context{}, false, nil
	}
	if err != nil {
		return Context{}, false, err
	}
	var c Context
	if err := json.Unmarshal(b, &c); err != nil {
		// A corrupt entry is treated as absent.
		return Context{}, false, nil
	}
	return c, true, nil
}

func (s *RedisStore) Put(ctx context.Context, id string, c Context) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(id), b, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.key(id)).Err()
}
