package main

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/domain/session"
	"github.com/geocoder89/taskhub/internal/housekeeping"
)

func TestOpenBackend_MemoryStorePurgesInProcess(t *testing.T) {
	ctx := context.Background()

	be, err := openBackend(ctx, config.Config{StoreDriver: config.StoreMemory}, nil)
	require.NoError(t, err)
	defer be.close()
	require.NotNil(t, be.purger)

	now := time.Now()
	require.NoError(t, be.refresh.Create(ctx, session.RefreshToken{ID: "old", UserID: "u1", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, be.refresh.Create(ctx, session.RefreshToken{ID: "live", UserID: "u1", ExpiresAt: now.Add(time.Hour)}))

	housekeeping.New(housekeeping.Config{}, be.purger, nil).RunOnce(ctx)

	n, err := be.purger.PurgeExpired(ctx, now, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, n, "expired token should already be gone")
}

func TestOpenCaches_FallsBackToMemory(t *testing.T) {
	cc := openCaches(context.Background(), config.Config{RedisAddr: "127.0.0.1:1", PrincipalCacheTTL: time.Minute}, prometheus.NewRegistry())
	defer cc.close()

	require.Len(t, cc.sweepers, 2)
}
