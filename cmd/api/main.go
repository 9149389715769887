package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/crypto/bcrypt"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/config"
	httpx "github.com/geocoder89/taskhub/internal/http"
	"github.com/geocoder89/taskhub/internal/housekeeping"
	"github.com/geocoder89/taskhub/internal/notifications"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/geocoder89/taskhub/internal/security"
	"github.com/geocoder89/taskhub/internal/service"
)

func main() {
	// Load the config set up
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// start up the observability logger
	log := observability.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName:   cfg.ServiceName,
			Environment:   cfg.Env,
			Endpoint:      cfg.OTLPEndpoint,
			SamplePercent: cfg.TraceSamplePercent,
		})
		if err != nil {
			log.Error("tracing disabled", "err", err)
		} else {
			defer func() {
				sctx, cancel := config.WithTimeout(5 * time.Second)
				defer cancel()
				_ = shutdownTracer(sctx)
			}()
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	be, err := openBackend(ctx, cfg, prom)
	if err != nil {
		log.Error("store unavailable", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer be.close()

	cc := openCaches(ctx, cfg, reg)
	defer cc.close()

	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)
	tokens := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)

	roles := service.NewRoleService(be.roles)
	users := service.NewUserService(be.users, roles, hasher, cc.principals).
		WithNotifier(notifications.NewProtectedNotifier(notifications.NewLogNotifier(log), notifications.ProtectedNotifierConfig{}))
	tasks := service.NewTaskService(be.tasks, be.users)
	authSvc := service.NewAuthService(be.users, hasher, tokens, be.refresh, cc.principals, cc.denylist)

	if err := roles.CheckProvisioned(ctx); err != nil {
		if errors.Is(err, apperr.ErrConfiguration) {
			log.Error("roles are not provisioned", "err", err)
		} else {
			log.Error("role check failed", "err", err)
		}
		os.Exit(1)
	}

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		u, created, err := users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			log.Error("admin bootstrap failed", "err", err)
			os.Exit(1)
		}
		log.Info("admin bootstrap", "user_id", u.ID, "created", created)
	}

	// set up routers with the services
	router, err := httpx.NewRouter(httpx.Deps{
		Config:  cfg,
		Auth:    authSvc,
		Users:   users,
		Tasks:   tasks,
		Roles:   roles,
		Prom:    prom,
		Metrics: reg,
		Ready:   be.ping,
	})
	if err != nil {
		log.Error("router setup failed", "err", err)
		os.Exit(1)
	}

	// in-process state is invisible to the worker, so it is swept here
	if be.purger != nil || len(cc.sweepers) > 0 {
		hk := housekeeping.New(housekeeping.Config{Interval: cfg.HousekeepingInterval}, be.purger, prom, cc.sweepers...)
		go func() { _ = hk.Run(ctx) }()
	}

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
