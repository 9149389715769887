package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geocoder89/taskhub/internal/redisclient"
)

// MemoryDenylist remembers revoked access token ids until they expire.
type MemoryDenylist struct {
	c   *TTL[struct{}]
	now func() time.Time
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{c: NewTTL[struct{}](time.Hour), now: time.Now}
}

func (m *MemoryDenylist) Deny(_ context.Context, jti string, until time.Time) error {
	if !until.After(m.now()) {
		return nil
	}
	m.c.SetUntil(jti, struct{}{}, until)
	return nil
}

func (m *MemoryDenylist) IsDenied(_ context.Context, jti string) (bool, error) {
	_, ok := m.c.Get(jti)
	return ok, nil
}

// Sweep drops entries whose token has expired anyway.
func (m *MemoryDenylist) Sweep() int { return m.c.Sweep() }

// RedisDenylist keeps one key per revoked token, expiring with the token.
type RedisDenylist struct {
	rdb  *redis.Client
	keys *redisclient.Client
	now  func() time.Time
}

func NewRedisDenylist(rc *redisclient.Client) *RedisDenylist {
	return &RedisDenylist{rdb: rc.Redis(), keys: rc, now: time.Now}
}

func (r *RedisDenylist) key(jti string) string { return r.keys.Key("denylist", jti) }

func (r *RedisDenylist) Deny(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, r.key(jti), "1", ttl).Err()
}

func (r *RedisDenylist) IsDenied(ctx context.Context, jti string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
