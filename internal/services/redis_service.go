// Package services holds the Redis-backed helpers around the relay: the
// online-status mirror read by the rest of the platform and the sliding
// window rate limiter guarding websocket upgrades.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"relay-service/internal/database"

	"github.com/redis/go-redis/v9"
)

const (
	onlineUsersKey    = "relay:online_users"
	onlineStatusTTL   = 5 * time.Minute
	offlineStatusTTL  = 24 * time.Hour
	rateLimitKeyspace = "relay:rate_limit"
)

type RedisService struct {
	client *database.RedisClient
	now    func() time.Time
}

func NewRedisService(client *database.RedisClient) *RedisService {
	return &RedisService{
		client: client,
		now:    time.Now,
	}
}

func statusKey(userID string) string {
	return fmt.Sprintf("relay:user:%s:status", userID)
}

// RateLimitKey builds the key for a limited action performed by subject
// (a user id or a client ip)
func RateLimitKey(action, subject string) string {
	return fmt.Sprintf("%s:%s:%s", rateLimitKeyspace, action, subject)
}

// =============================================================================
// User Status Mirror
// =============================================================================

func (r *RedisService) SetUserOnline(ctx context.Context, userID string) error {
	return r.setStatus(ctx, userID, "online", onlineStatusTTL)
}

func (r *RedisService) SetUserOffline(ctx context.Context, userID string) error {
	return r.setStatus(ctx, userID, "offline", offlineStatusTTL)
}

func (r *RedisService) setStatus(ctx context.Context, userID, status string, ttl time.Duration) error {
	now := r.now().Unix()
	pipe := r.client.GetClient().TxPipeline()

	if status == "online" {
		pipe.SAdd(ctx, onlineUsersKey, userID)
	} else {
		pipe.SRem(ctx, onlineUsersKey, userID)
	}
	pipe.HSet(ctx, statusKey(userID), map[string]interface{}{
		"status":     status,
		"last_seen":  now,
		"updated_at": now,
	})
	pipe.Expire(ctx, statusKey(userID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("Failed to mirror user status", "userID", userID, "status", status, "error", err)
		return fmt.Errorf("set user %s %s: %w", userID, status, err)
	}

	slog.Debug("User status mirrored", "userID", userID, "status", status)
	return nil
}

func (r *RedisService) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	return r.client.GetClient().SIsMember(ctx, onlineUsersKey, userID).Result()
}

func (r *RedisService) GetOnlineUsers(ctx context.Context) ([]string, error) {
	return r.client.GetClient().SMembers(ctx, onlineUsersKey).Result()
}

// LastSeen returns the last status change recorded for userID. ok is false
// when the status hash has expired or never existed.
func (r *RedisService) LastSeen(ctx context.Context, userID string) (at time.Time, ok bool, err error) {
	raw, err := r.client.GetClient().HGet(ctx, statusKey(userID), "last_seen").Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("malformed last_seen for %s: %w", userID, err)
	}
	return time.Unix(sec, 0), true, nil
}

// =============================================================================
// Rate Limiting
// =============================================================================

// CheckRateLimit records one hit on key and reports whether fewer than limit
// hits happened in the trailing window before it.
func (r *RedisService) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := r.now()
	windowStart := now.Add(-window).UnixNano()

	pipe := r.client.GetClient().Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	count := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return count.Val() < int64(limit), nil
}
