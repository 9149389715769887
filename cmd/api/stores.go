package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/geocoder89/taskhub/internal/cache"
	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/db"
	"github.com/geocoder89/taskhub/internal/housekeeping"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/geocoder89/taskhub/internal/redisclient"
	"github.com/geocoder89/taskhub/internal/repo/memory"
	"github.com/geocoder89/taskhub/internal/repo/postgres"
	"github.com/geocoder89/taskhub/internal/service"
)

// backend is the selected persistence driver.
type backend struct {
	users   service.UserStore
	roles   service.RoleStore
	tasks   service.TaskStore
	refresh service.RefreshTokenStore
	// purger is set when nothing but this process can purge refresh tokens.
	purger  housekeeping.TokenPurger
	ping    func(ctx context.Context) error
	close   func()
}

func openBackend(ctx context.Context, cfg config.Config, prom *observability.Prom) (*backend, error) {
	if cfg.StoreDriver == config.StoreMemory {
		slog.Default().Warn("store.memory", "msg", "data is kept in process and lost on restart")

		st := memory.NewStore()
		return &backend{
			users:   st.Users,
			roles:   st.Roles,
			tasks:   st.Tasks,
			refresh: st.RefreshTokens,
			purger:  st.RefreshTokens,
			ping:    func(context.Context) error { return st.Ping() },
			close:   func() {},
		}, nil
	}

	if err := db.ApplyMigrations(cfg.DBURL); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.DBURL, int32(cfg.DBMaxConns))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	return &backend{
		users:   postgres.NewUsersRepo(pool, prom),
		roles:   postgres.NewRolesRepo(pool, prom),
		tasks:   postgres.NewTasksRepo(pool, prom),
		refresh: postgres.NewRefreshTokensRepo(pool, prom),
		ping:    pool.Ping,
		close:   pool.Close,
	}, nil
}

// caches picks redis when configured and reachable, in-process otherwise.
// In-process caches are returned as sweepers for the housekeeper.
type caches struct {
	principals service.PrincipalCache
	denylist   service.TokenDenylist
	sweepers   []housekeeping.Sweeper
	close      func()
}

func openCaches(ctx context.Context, cfg config.Config, reg prometheus.Registerer) caches {
	if cfg.RedisAddr != "" {
		rc, err := redisclient.Connect(ctx, redisclient.Config{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Namespace: cfg.RedisNamespace,
			PoolSize:  cfg.RedisPoolSize,
		})
		if err == nil {
			slog.Default().Info("cache.redis", "addr", cfg.RedisAddr, "namespace", rc.Namespace())
			if err := rc.RegisterPoolMetrics(reg); err != nil {
				slog.Default().Warn("cache.redis_metrics", "err", err)
			}
			return caches{
				principals: cache.NewRedisPrincipals(rc, cfg.PrincipalCacheTTL),
				denylist:   cache.NewRedisDenylist(rc),
				close:      func() { _ = rc.Close() },
			}
		}

		slog.Default().Warn("cache.redis_unavailable", "addr", cfg.RedisAddr, "err", err)
	}

	principals := cache.NewMemoryPrincipals(cfg.PrincipalCacheTTL)
	denylist := cache.NewMemoryDenylist()
	return caches{
		principals: principals,
		denylist:   denylist,
		sweepers:   []housekeeping.Sweeper{principals, denylist},
		close:      func() {},
	}
}
