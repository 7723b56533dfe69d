package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	mu     sync.RWMutex
	client *redis.Client
)

// ErrNotConfigured is returned when no Redis URL is set
var ErrNotConfigured = errors.New("redis: UPSTASH_REDIS_URL not configured")

// Config holds Redis connection configuration
type Config struct {
	URL      string // redis://host:port or rediss://host:port for TLS (Upstash)
	Password string // overrides any password in URL
}

// Client returns the shared client, or nil when Redis is not configured or
// the connection failed. Callers fall back to in-memory behaviour on nil.
func Client() *redis.Client {
	mu.RLock()
	defer mu.RUnlock()
	return client
}

// Use installs c as the shared client. Passing nil disables Redis.
func Use(c *redis.Client) {
	mu.Lock()
	client = c
	mu.Unlock()
}

// Options converts cfg into go-redis options
func Options(cfg Config) (*redis.Options, error) {
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if opts.TLSConfig != nil {
		opts.TLSConfig.MinVersion = tls.VersionTLS12
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolSize = 10
	opts.MinIdleConns = 2
	return opts, nil
}

// Initialize connects to Redis and installs the shared client.
// On failure the shared client stays nil.
func Initialize(ctx context.Context, cfg Config) error {
	opts, err := Options(cfg)
	if err != nil {
		return err
	}

	c := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		c.Close()
		return fmt.Errorf("redis: connection failed: %w", err)
	}

	Use(c)
	return nil
}

// Close closes the shared connection
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if client == nil {
		return nil
	}
	err := client.Close()
	client = nil
	return err
}

// HealthCheck pings the shared client
func HealthCheck(ctx context.Context) error {
	c := Client()
	if c == nil {
		return errors.New("redis: client not initialized")
	}
	return c.Ping(ctx).Err()
}
