package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KingMavin/UniSemi/internal/domain/shared"
)

func TestConfig_Options(t *testing.T) {
	t.Run("host and port", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Host = "cache"
		cfg.Port = 6380
		cfg.DB = 2

		opts, err := cfg.Options()
		require.NoError(t, err)
		assert.Equal(t, "cache:6380", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 10, opts.PoolSize)
		assert.Equal(t, -1, opts.MaxRetries)
	})

	t.Run("url wins", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.URL = "redis://:secret@remote:7000/3"

		opts, err := cfg.Options()
		require.NoError(t, err)
		assert.Equal(t, "remote:7000", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 3, opts.DB)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := Config{URL: "http://nope"}.Options()
		assert.Error(t, err)
	})
}

func TestClient_Keys(t *testing.T) {
	c := NewClientFrom(nil, "unisemi:")

	assert.Equal(t, "unisemi:record:CSC/1", c.RecordKey("CSC/1"))
	assert.Equal(t, "unisemi:record:CSC/1:versions", c.VersionsKey("CSC/1"))
	assert.Equal(t, "unisemi:records", c.RecordIndexKey())
	assert.Equal(t, "unisemi:audit:ids", c.AuditIndexKey())
	assert.Equal(t, "unisemi:audit:entries", c.AuditEntriesKey())
}

func TestIsConnectivityError(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	assert.True(t, IsConnectivityError(opErr))
	assert.True(t, IsConnectivityError(fmt.Errorf("wrapped: %w", redis.ErrClosed)))
	assert.True(t, IsConnectivityError(context.DeadlineExceeded))
	assert.False(t, IsConnectivityError(nil))
	assert.False(t, IsConnectivityError(errors.New("WRONGTYPE Operation against a key")))
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate("op", nil))
	assert.True(t, shared.IsUnavailable(translate("op", redis.ErrClosed)))
	assert.False(t, shared.IsUnavailable(translate("op", errors.New("ERR syntax"))))
}

func TestRecordStore_UnreachableServer(t *testing.T) {
	client, err := NewClient(Config{Host: "127.0.0.1", Port: 1, DialTimeout: 200 * time.Millisecond})
	require.NoError(t, err)
	defer client.Close()

	store := NewRecordStore(client)
	_, err = store.GetRow(context.Background(), "CSC/1")
	require.Error(t, err)
	assert.True(t, shared.IsUnavailable(err), "%v", err)
}
