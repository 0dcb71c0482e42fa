package config

import "time"

// ChatConfig configures the chatbot engine and its session store.
type ChatConfig struct {
	Store         string        // "redis" or "memory"
	SessionTTL    time.Duration // context is forgotten after this much idle time
	SweepInterval time.Duration // memory store eviction period
	HistoryLimit  int           // entries kept per session (user + bot turns)
	MaxMessageLen int
	Prefix        string // redis key prefix
	KBPath        string // optional YAML knowledge base overriding the embedded one
}

func LoadChatConfig() ChatConfig {
	c := ChatConfig{
		Store:         envStr("CHAT_STORE", "redis"),
		SessionTTL:    envDur("CHAT_SESSION_TTL", 30*time.Minute),
		SweepInterval: envDur("CHAT_SWEEP_INTERVAL", 10*time.Minute),
		HistoryLimit:  envInt("CHAT_HISTORY_LIMIT", 10),
		MaxMessageLen: envInt("CHAT_MAX_MESSAGE_LEN", 1000),
		Prefix:        envStr("CHAT_PREFIX", "chat:ctx"),
		KBPath:        envStr("CHAT_KB_PATH", ""),
	}
	if c.HistoryLimit < 2 {
		c.HistoryLimit = 2
	}
	return c
}
