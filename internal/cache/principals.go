package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/redisclient"
)

// MemoryPrincipals caches principals in process.
type MemoryPrincipals struct {
	c *TTL[access.Principal]
}

func NewMemoryPrincipals(ttl time.Duration) *MemoryPrincipals {
	return &MemoryPrincipals{c: NewTTL[access.Principal](ttl)}
}

func (m *MemoryPrincipals) Get(_ context.Context, userID string) (access.Principal, bool) {
	return m.c.Get(userID)
}

func (m *MemoryPrincipals) Set(_ context.Context, p access.Principal) {
	m.c.Set(p.UserID, p)
}

func (m *MemoryPrincipals) Invalidate(_ context.Context, userID string) {
	m.c.Delete(userID)
}

func (m *MemoryPrincipals) Sweep() int { return m.c.Sweep() }

// RedisPrincipals shares cached principals across API replicas. Redis
// failures degrade to cache misses.
type RedisPrincipals struct {
	rdb  *redis.Client
	keys *redisclient.Client
	ttl  time.Duration
}

func NewRedisPrincipals(rc *redisclient.Client, ttl time.Duration) *RedisPrincipals {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisPrincipals{rdb: rc.Redis(), keys: rc, ttl: ttl}
}

func (r *RedisPrincipals) key(userID string) string { return r.keys.Key("principal", userID) }

func (r *RedisPrincipals) Get(ctx context.Context, userID string) (access.Principal, bool) {
	b, err := r.rdb.Get(ctx, r.key(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Default().WarnContext(ctx, "principal_cache_get_failed", "user_id", userID, "err", err)
		}
		return access.Principal{}, false
	}

	var p access.Principal
	if err := json.Unmarshal(b, &p); err != nil {
		return access.Principal{}, false
	}
	return p, true
}

func (r *RedisPrincipals) Set(ctx context.Context, p access.Principal) {
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, r.key(p.UserID), b, r.ttl).Err(); err != nil {
		slog.Default().WarnContext(ctx, "principal_cache_set_failed", "user_id", p.UserID, "err", err)
	}
}

func (r *RedisPrincipals) Invalidate(ctx context.Context, userID string) {
	if err := r.rdb.Del(ctx, r.key(userID)).Err(); err != nil {
		slog.Default().WarnContext(ctx, "principal_cache_invalidate_failed", "user_id", userID, "err", err)
	}
}
