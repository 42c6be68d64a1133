package moltbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func frozenLimiter(start time.Time) (*RateLimiter, *time.Time) {
	now := start
	rl := NewRateLimiter()
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiterFreshAgent(t *testing.T) {
	rl, _ := frozenLimiter(time.Unix(1000, 0))

	assert.True(t, rl.CanPostNow("agent-1"))
	assert.Equal(t, 0, rl.SecondsUntilCanPost("agent-1"))
}

func TestRateLimiterCooldownWindow(t *testing.T) {
	rl, now := frozenLimiter(time.Unix(1000, 0))

	rl.RecordPost("agent-1")
	assert.False(t, rl.CanPostNow("agent-1"))
	assert.Equal(t, 1800, rl.SecondsUntilCanPost("agent-1"))

	// Another agent is unaffected.
	assert.True(t, rl.CanPostNow("agent-2"))

	*now = now.Add(900 * time.Second)
	assert.False(t, rl.CanPostNow("agent-1"))
	assert.Equal(t, 900, rl.SecondsUntilCanPost("agent-1"))

	*now = now.Add(901 * time.Second)
	assert.True(t, rl.CanPostNow("agent-1"))
	assert.Equal(t, 0, rl.SecondsUntilCanPost("agent-1"))
}

func TestRateLimiterExactBoundary(t *testing.T) {
	rl, now := frozenLimiter(time.Unix(1000, 0))

	rl.RecordPost("agent-1")
	*now = now.Add(PostCooldown)

	// Elapsed == cooldown posts again.
	assert.True(t, rl.CanPostNow("agent-1"))
}

func TestRateLimiterRecordResetsWindow(t *testing.T) {
	rl, now := frozenLimiter(time.Unix(1000, 0))

	rl.RecordPost("agent-1")
	*now = now.Add(PostCooldown + time.Second)
	rl.RecordPost("agent-1")

	assert.False(t, rl.CanPostNow("agent-1"))
	assert.Equal(t, 1800, rl.SecondsUntilCanPost("agent-1"))
}
