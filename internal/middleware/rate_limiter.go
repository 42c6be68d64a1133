package middleware

import (
	"log"
	"net/http"
	"sync"
	"time"
)

// RateLimiter enforces per-API-key request limits on the inbound API.
//
// Uses a sliding window: each window tracks request counts per key, and
// expired windows are garbage-collected periodically. Distinct from the
// Moltbook post cooldown, which gates outbound crossposts. All window
// mutation happens under the mutex, so concurrent requests for one key see a
// consistent count.
type RateLimiter struct {
	mu       sync.Mutex
	windows  map[string]*rateLimitWindow
	defaults RateLimitConfig
	logger   *log.Logger
}

// RateLimitConfig defines the rate limiting thresholds.
type RateLimitConfig struct {
	MaxCallsPerMinute int
	BurstSize         int // allow temporary bursts above the limit
}

type rateLimitWindow struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a new rate limiter with the given defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.MaxCallsPerMinute == 0 {
		cfg.MaxCallsPerMinute = 60
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = cfg.MaxCallsPerMinute * 2
	}

	rl := &RateLimiter{
		windows:  make(map[string]*rateLimitWindow),
		defaults: cfg,
		logger:   log.New(log.Writer(), "[RATE-LIMIT] ", log.LstdFlags),
	}

	go rl.cleanup()

	return rl
}

// Allow checks if a request under the given key should be allowed.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	window, exists := rl.windows[key]
	if !exists || now.Sub(window.windowStart) > time.Minute {
		rl.windows[key] = &rateLimitWindow{count: 1, windowStart: now}
		return true
	}

	window.count++
	if window.count > rl.defaults.BurstSize {
		rl.logger.Printf("rate limit exceeded (burst): key=%s count=%d limit=%d",
			key, window.count, rl.defaults.BurstSize)
		return false
	}
	if window.count > rl.defaults.MaxCallsPerMinute {
		rl.logger.Printf("rate limit exceeded: key=%s count=%d limit=%d",
			key, window.count, rl.defaults.MaxCallsPerMinute)
		return false
	}
	return true
}

// Middleware enforces the limit, keyed by API key when present and remote
// address otherwise.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := apiKeyFrom(r)
		if key == "" {
			key = r.RemoteAddr
		}

		if !rl.Allow(key) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded","retry_after_seconds":60}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// cleanup periodically removes expired windows to prevent memory leaks.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, window := range rl.windows {
			if now.Sub(window.windowStart) > 2*time.Minute {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}
