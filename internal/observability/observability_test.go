package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/actorctx"
)

func TestNewLogger_AddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod", "info")

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	log.InfoContext(ctx, "hello")
	span.End()

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, span.SpanContext().TraceID().String(), rec["trace_id"])
	require.NotEmpty(t, rec["span_id"])
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("dev", ""))
	require.Equal(t, slog.LevelInfo, parseLevel("prod", ""))
	require.Equal(t, slog.LevelWarn, parseLevel("dev", "warn"))
}

func TestObserveDB_CountsErrorsByClass(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	err := p.ObserveDB("users.create", func() error {
		return &pgconn.PgError{Code: "23505"}
	})
	require.Error(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.create", "unique_violation")))

	_ = p.ObserveDB("users.get", func() error { return errors.New("dial tcp: connection refused") })
	require.Equal(t, 1.0, testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.get", "connection")))
}

func TestObserveAccess(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())
	p.ObserveAccess("denied", "/admin/*")
	p.ObserveAccess("authorized", "")

	require.Equal(t, 1.0, testutil.ToFloat64(p.AccessDecisions.WithLabelValues("denied", "/admin/*")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.AccessDecisions.WithLabelValues("authorized", "default")))
}

func TestObserveDB_NoRowsIsNotAnError(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	err := p.ObserveDB("tasks.get_by_id", func() error { return pgx.ErrNoRows })
	require.ErrorIs(t, err, pgx.ErrNoRows)
	_ = p.ObserveDB("tasks.get_by_id", func() error { return &pgconn.PgError{Code: "22P02"} })
	require.Equal(t, 0, testutil.CollectAndCount(p.DbErrorsTotal))

	_ = p.ObserveDB("tasks.lock", func() error { return context.DeadlineExceeded })
	require.Equal(t, 1.0, testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("tasks.lock", "timeout")))
}

func TestTraceHandler_AddsActingUser(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod", "info")

	ctx := actorctx.WithPrincipal(context.Background(), access.Principal{UserID: "u-1"})
	log.InfoContext(ctx, "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "u-1", rec["user_id"])

	buf.Reset()
	log.InfoContext(ctx, "explicit", "user_id", "u-2")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "u-2", rec["user_id"])
}

func TestSampler(t *testing.T) {
	require.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	require.Contains(t, sampler(100).Description(), "AlwaysOnSampler")
	require.Contains(t, sampler(25).Description(), "TraceIDRatioBased{0.25}")
}
