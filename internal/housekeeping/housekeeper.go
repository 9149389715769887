package housekeeping

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/taskhub/internal/observability"
)

// TokenPurger deletes refresh tokens that can no longer be used.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, now time.Time, revokedBefore time.Time) (int64, error)
}

// Sweeper is an in-process cache with expiring entries.
type Sweeper interface {
	Sweep() int
}

type Config struct {
	Interval time.Duration
	// RevokedRetention keeps revoked tokens around so reuse can be traced.
	RevokedRetention time.Duration
	Timeout          time.Duration
}

// Housekeeper periodically purges dead refresh tokens and sweeps caches.
type Housekeeper struct {
	cfg      Config
	tokens   TokenPurger
	sweepers []Sweeper
	prom     *observability.Prom
	now      func() time.Time

	readyMu sync.RWMutex
	ready   bool
}

// New builds a housekeeper. tokens and prom may be nil.
func New(cfg Config, tokens TokenPurger, prom *observability.Prom, sweepers ...Sweeper) *Housekeeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.RevokedRetention <= 0 {
		cfg.RevokedRetention = 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Housekeeper{
		cfg:      cfg,
		tokens:   tokens,
		sweepers: sweepers,
		prom:     prom,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (h *Housekeeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	h.setReady(true)
	defer h.setReady(false)

	h.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Default().Info("housekeeping.stopping")
			return nil

		case <-ticker.C:
			h.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. Failures are logged and counted; the next
// tick tries again.
func (h *Housekeeper) RunOnce(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	start := h.now()
	result := "ok"

	var purged int64
	if h.tokens != nil {
		n, err := h.tokens.PurgeExpired(cctx, start.UTC(), start.UTC().Add(-h.cfg.RevokedRetention))
		if err != nil {
			result = "error"
			slog.Default().ErrorContext(ctx, "housekeeping.purge_failed", "err", err)
		}
		purged = n
	}

	swept := 0
	for _, s := range h.sweepers {
		swept += s.Sweep()
	}

	if h.prom != nil {
		h.prom.HousekeepingRuns.WithLabelValues(result).Inc()
		h.prom.RefreshTokensPurged.Add(float64(purged))
	}

	slog.Default().InfoContext(ctx, "housekeeping.run",
		"result", result,
		"refresh_tokens_purged", purged,
		"cache_entries_swept", swept,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (h *Housekeeper) setReady(v bool) {
	h.readyMu.Lock()
	h.ready = v
	h.readyMu.Unlock()
}

func (h *Housekeeper) Ready() bool {
	h.readyMu.RLock()
	defer h.readyMu.RUnlock()
	return h.ready
}
