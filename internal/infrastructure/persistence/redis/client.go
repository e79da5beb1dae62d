// Package redis implements the record store and audit sink on Redis.
//
// Key layout (every key carries the configured prefix):
//   - record:{matric}           hash of record columns plus the row version
//   - record:{matric}:versions  list of retained history values, newest first
//   - record:{matric}:deleted   last version of a deleted record
//   - records                   sorted set of matric numbers, all scored 0
//   - audit:ids                 sorted set of audit ids, all scored 0
//   - audit:entries             hash of audit id to JSON entry
package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KingMavin/UniSemi/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// URL takes precedence over Host/Port/Password/DB when set.
	URL string

	Host     string
	Port     int
	Password string
	DB       int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// KeyPrefix namespaces every key this package writes.
	KeyPrefix string
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "unisemi:",
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Options builds go-redis options from the config.
func (c Config) Options() (*redis.Options, error) {
	var opts *redis.Options
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("redis: invalid URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     c.Addr(),
			Password: c.Password,
			DB:       c.DB,
		}
	}

	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	if c.MinIdleConns > 0 {
		opts.MinIdleConns = c.MinIdleConns
	}
	if c.DialTimeout > 0 {
		opts.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		opts.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		opts.WriteTimeout = c.WriteTimeout
	}
	// Reconnects are handled one level up with a fixed single retry.
	opts.MaxRetries = -1

	return opts, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client wraps a pooled go-redis client and the key namespace.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient creates the client. go-redis dials lazily, so an unreachable
// server surfaces on the first command.
func NewClient(cfg Config) (*Client, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return &Client{rdb: redis.NewClient(opts), prefix: cfg.KeyPrefix}, nil
}

// NewClientFrom wraps an existing go-redis client.
func NewClientFrom(rdb *redis.Client, prefix string) *Client {
	return &Client{rdb: rdb, prefix: prefix}
}

// Close closes the Redis connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// KEY HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// RecordKey returns the hash key of a record.
func (c *Client) RecordKey(matric string) string {
	return c.prefix + "record:" + matric
}

// VersionsKey returns the list key holding a record's history versions.
func (c *Client) VersionsKey(matric string) string {
	return c.prefix + "record:" + matric + ":versions"
}

// TombstoneKey returns the key holding the last version of a deleted record.
func (c *Client) TombstoneKey(matric string) string {
	return c.prefix + "record:" + matric + ":deleted"
}

// RecordIndexKey returns the sorted set of all matric numbers.
func (c *Client) RecordIndexKey() string {
	return c.prefix + "records"
}

// AuditIndexKey returns the sorted set of audit ids.
func (c *Client) AuditIndexKey() string {
	return c.prefix + "audit:ids"
}

// AuditEntriesKey returns the hash of audit entries.
func (c *Client) AuditEntriesKey() string {
	return c.prefix + "audit:entries"
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// IsConnectivityError reports failures to reach Redis, as opposed to
// errors returned by a command that ran.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.HasPrefix(msg, "LOADING")
}

// translate maps a go-redis failure onto the domain error kinds.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsConnectivityError(err) {
		return shared.WrapError("store", op, shared.ErrServiceUnavailable, "redis unreachable", err)
	}
	return shared.WrapError("store", op, shared.ErrExternalService, "redis operation failed", err)
}
