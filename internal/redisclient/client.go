package redisclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultNamespace = "taskhub"
	defaultTimeout   = 2 * time.Second
)

// Client is the connection shared by the redis-backed caches. Every key it
// hands out lives under Namespace, so several deployments can share one
// database.
type Client struct {
	rdb       *redis.Client
	namespace string
	addr      string
}

type Config struct {
	Addr     string
	Password string
	DB       int
	// Namespace prefixes every key; defaults to DefaultNamespace.
	Namespace string
	// Timeout bounds dialing, reads, writes and the connect check.
	Timeout  time.Duration
	PoolSize int
}

func (c Config) withDefaults() Config {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	c.Namespace = strings.TrimSuffix(c.Namespace, ":")
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// New builds a client without touching the network.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		PoolSize:     cfg.PoolSize,
	})

	return &Client{rdb: rdb, namespace: cfg.Namespace, addr: cfg.Addr}
}

// Connect is New followed by a ping bounded by cfg.Timeout. A client that
// does not answer is closed before the error is returned.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	c := New(cfg)
	cfg = cfg.withDefaults()

	pctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := c.Ping(pctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis %s: %w", c.addr, err)
	}
	return c, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Redis() *redis.Client {
	return c.rdb
}

func (c *Client) Namespace() string {
	return c.namespace
}

// Key joins parts under the namespace, e.g. Key("denylist", jti) gives
// "taskhub:denylist:<jti>".
func (c *Client) Key(parts ...string) string {
	return c.namespace + ":" + strings.Join(parts, ":")
}

// RegisterPoolMetrics exposes the connection pool counters of this client.
func (c *Client) RegisterPoolMetrics(reg prometheus.Registerer) error {
	stat := func(pick func(*redis.PoolStats) uint32) func() float64 {
		return func() float64 { return float64(pick(c.rdb.PoolStats())) }
	}

	labels := prometheus.Labels{"keyspace": c.namespace}

	cs := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "taskhub", Subsystem: "redis_pool", ConstLabels: labels, Name: "hits_total",
			Help: "Connections reused from the redis pool.",
		}, stat(func(s *redis.PoolStats) uint32 { return s.Hits })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "taskhub", Subsystem: "redis_pool", ConstLabels: labels, Name: "misses_total",
			Help: "Connections the redis pool had to dial.",
		}, stat(func(s *redis.PoolStats) uint32 { return s.Misses })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "taskhub", Subsystem: "redis_pool", ConstLabels: labels, Name: "timeouts_total",
			Help: "Waits for a free redis connection that timed out.",
		}, stat(func(s *redis.PoolStats) uint32 { return s.Timeouts })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "taskhub", Subsystem: "redis_pool", ConstLabels: labels, Name: "connections",
			Help: "Open redis connections.",
		}, stat(func(s *redis.PoolStats) uint32 { return s.TotalConns })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "taskhub", Subsystem: "redis_pool", ConstLabels: labels, Name: "idle_connections",
			Help: "Idle redis connections.",
		}, stat(func(s *redis.PoolStats) uint32 { return s.IdleConns })),
	}

	for _, col := range cs {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}
