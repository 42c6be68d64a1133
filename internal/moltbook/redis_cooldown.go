package moltbook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCooldownStore is a CooldownStore backed by a shared Redis key with
// TTL, for deployments running multiple server workers. Each recorded post
// sets a key that expires when the cooldown elapses.
type RedisCooldownStore struct {
	rdb      *redis.Client
	cooldown time.Duration
}

// NewRedisCooldownStore connects to Redis and verifies connectivity. The
// caller decides whether to fall back to the in-memory RateLimiter on error.
func NewRedisCooldownStore(addr, password string, db int) (*RedisCooldownStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", addr, err)
	}

	slog.Info("Redis cooldown store connected", "addr", addr, "db", db)
	return &RedisCooldownStore{rdb: rdb, cooldown: PostCooldown}, nil
}

// Close shuts down the underlying redis client.
func (s *RedisCooldownStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisCooldownStore) key(agentID string) string {
	return "moltbook:cooldown:" + agentID
}

// CanPostNow reports whether no active cooldown key exists for the agent.
// Redis being unavailable fails open: crossposting is best-effort and a
// blocked mirror is worse than an occasional early one.
func (s *RedisCooldownStore) CanPostNow(agentID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := s.rdb.Exists(ctx, s.key(agentID)).Result()
	if err != nil {
		slog.Warn("cooldown check failed, allowing post", "agent_id", agentID, "err", err)
		return true
	}
	return n == 0
}

// RecordPost sets the cooldown key with the full cooldown as TTL.
func (s *RedisCooldownStore) RecordPost(agentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.rdb.Set(ctx, s.key(agentID), time.Now().Unix(), s.cooldown).Err(); err != nil {
		slog.Warn("failed to record post time", "agent_id", agentID, "err", err)
	}
}

// SecondsUntilCanPost returns the remaining TTL on the cooldown key,
// clamped at 0.
func (s *RedisCooldownStore) SecondsUntilCanPost(agentID string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ttl, err := s.rdb.TTL(ctx, s.key(agentID)).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return int(ttl / time.Second)
}
