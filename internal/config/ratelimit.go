package config

import "time"

// RateLimitConfig drives the token bucket middleware. When redis is not
// reachable and Fallback is set, an in-process limiter enforces the same
// capacity per key on this instance only.
type RateLimitConfig struct {
	Enabled        bool
	Fallback       bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig returns the general API limiter settings.
func LoadRateLimitConfig() RateLimitConfig {
	return normalizeRateLimit(RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Fallback:       envBool("RATE_LIMIT_FALLBACK", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	})
}

// LoadAuthRateLimitConfig returns the stricter limiter used on /v1/auth,
// keyed by client IP so OTP and password guessing is throttled.
func LoadAuthRateLimitConfig() RateLimitConfig {
	return normalizeRateLimit(RateLimitConfig{
		Enabled:        envBool("AUTH_RATE_LIMIT_ENABLED", true),
		Fallback:       envBool("RATE_LIMIT_FALLBACK", true),
		Capacity:       envInt("AUTH_RATE_LIMIT_CAPACITY", 10),
		RefillTokens:   1,
		RefillInterval: envDur("AUTH_RATE_LIMIT_REFILL_INTERVAL", 6*time.Second),
		TTL:            envDur("AUTH_RATE_LIMIT_TTL", 15*time.Minute),
		KeyStrategy:    "ip_route",
		Prefix:         envStr("AUTH_RATE_LIMIT_PREFIX", "rl:auth"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	})
}

func normalizeRateLimit(c RateLimitConfig) RateLimitConfig {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}
