package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/geocoder89/taskhub/internal/access"
)

func TestTTL_ExpiresEntries(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewTTL[int](time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestTTL_EvictKeepsEntryRefreshedAfterRead(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewTTL[int](time.Minute)
	c.now = func() time.Time { return now }

	c.SetUntil("a", 1, now.Add(-time.Second))
	stale := now

	// a concurrent Set refreshes the key between Get's read and its eviction
	c.SetUntil("a", 2, now.Add(time.Minute))
	c.evictExpired("a", stale)

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 2, v)

	now = now.Add(2 * time.Minute)
	c.evictExpired("a", now)
	require.Equal(t, 0, c.Len())
}

func TestTTL_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewTTL[string](time.Minute)
	c.now = func() time.Time { return now }

	c.Set("old", "x")
	c.SetUntil("new", "y", now.Add(time.Hour))

	now = now.Add(5 * time.Minute)
	require.Equal(t, 1, c.Sweep())
	require.Equal(t, 1, c.Len())
}

func TestMemoryPrincipals(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryPrincipals(time.Minute)

	p := access.Principal{UserID: "u1", Username: "alice", Roles: access.NewRoleSet(access.RoleUser), Enabled: true}
	m.Set(ctx, p)

	got, ok := m.Get(ctx, "u1")
	require.True(t, ok)
	require.Equal(t, p, got)

	m.Invalidate(ctx, "u1")
	_, ok = m.Get(ctx, "u1")
	require.False(t, ok)
}

func TestMemoryDenylist(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDenylist()

	require.NoError(t, d.Deny(ctx, "jti-1", time.Now().Add(time.Minute)))
	require.NoError(t, d.Deny(ctx, "jti-expired", time.Now().Add(-time.Minute)))

	denied, err := d.IsDenied(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, denied)

	denied, err = d.IsDenied(ctx, "jti-expired")
	require.NoError(t, err)
	require.False(t, denied)
}
