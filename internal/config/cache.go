package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache middleware used on
// public zone reads. Occupancy changes often, so the default TTL is short.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_* variables. Methods are upper-cased.
func LoadCacheConfig() CacheConfig {
	methods := map[string]bool{}
	for _, m := range envList("CACHE_METHODS", "GET") {
		methods[strings.ToUpper(m)] = true
	}
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      methods,
		TTL:          envDur("CACHE_TTL", 10*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "cache:zones"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

// IdempotencyConfig controls replay of POST responses keyed by the
// X-Idempotency-Key header.
type IdempotencyConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

func LoadIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		Enabled: envBool("IDEMPOTENCY_ENABLED", true),
		TTL:     envDur("IDEMPOTENCY_TTL", 24*time.Hour),
		Prefix:  envStr("IDEMPOTENCY_PREFIX", "idem"),
	}
}
