package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadPolicyConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		p := LoadPolicyConfig()
		assert.Equal(t, int64(50000), p.DefaultPenaltyPerVehicle)
		assert.Equal(t, 5, p.CancellationWindowDays)
		assert.Equal(t, int64(6), p.RefundDivisor)
		assert.Equal(t, int64(150000), p.PassPrices["monthly"])
	})

	t.Run("Invalid divisor falls back", func(t *testing.T) {
		t.Setenv("POLICY_REFUND_DIVISOR", "0")
		assert.Equal(t, int64(6), LoadPolicyConfig().RefundDivisor)
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("PASS_PRICE_WEEKLY", "70000")
		t.Setenv("POLICY_CANCELLATION_WINDOW_DAYS", "3")
		p := LoadPolicyConfig()
		assert.Equal(t, int64(70000), p.PassPrices["weekly"])
		assert.Equal(t, 3, p.CancellationWindowDays)
	})
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 2*time.Second, c.RefillInterval)
	assert.Equal(t, 10*time.Second, c.TTL, "TTL is raised to five refill intervals")
}

func TestLoadRedisConfig(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	assert.Equal(t, "cache:6380", LoadRedisConfig().Addr)

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	assert.Equal(t, "redis:6379", LoadRedisConfig().Addr)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_BOOL", "YES")
	t.Setenv("X_INT", "nope")
	t.Setenv("X_LIST", " get , head ,,")

	assert.True(t, envBool("X_BOOL", false))
	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.Equal(t, []string{"get", "head"}, envList("X_LIST", ""))
	assert.Equal(t, 3*time.Second, envDur("X_MISSING", 3*time.Second))
}
