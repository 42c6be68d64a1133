package moltbook

import (
	"sync"
	"time"
)

// PostCooldown is the minimum interval between outbound posts per agent.
const PostCooldown = 30 * time.Minute

// CooldownStore gates outbound posts per agent. RecordPost must be called
// exactly once per successful post, after the post succeeds: a failed post
// must not consume the cooldown window.
type CooldownStore interface {
	CanPostNow(agentID string) bool
	RecordPost(agentID string)
	SecondsUntilCanPost(agentID string) int
}

// RateLimiter is the in-process CooldownStore: a mutex-guarded map from
// agent ID to last-post time. State lives for the process lifetime only;
// a restart resets all cooldowns, and concurrent server workers do not share
// it. Multi-process deployments should use RedisCooldownStore instead.
type RateLimiter struct {
	mu       sync.Mutex
	lastPost map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
}

// NewRateLimiter creates a rate limiter with the standard post cooldown.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		lastPost: make(map[string]time.Time),
		cooldown: PostCooldown,
		now:      time.Now,
	}
}

// CanPostNow reports whether the agent's cooldown has elapsed.
func (rl *RateLimiter) CanPostNow(agentID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	last, ok := rl.lastPost[agentID]
	if !ok {
		return true
	}
	return rl.now().Sub(last) >= rl.cooldown
}

// RecordPost stamps the agent's last-post time.
func (rl *RateLimiter) RecordPost(agentID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.lastPost[agentID] = rl.now()
}

// SecondsUntilCanPost returns the remaining cooldown, clamped at 0.
func (rl *RateLimiter) SecondsUntilCanPost(agentID string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	last, ok := rl.lastPost[agentID]
	if !ok {
		return 0
	}
	remaining := rl.cooldown - rl.now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return int(remaining / time.Second)
}
