//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/KingMavin/UniSemi/internal/domain/academic"
	"github.com/KingMavin/UniSemi/internal/domain/audit"
	"github.com/KingMavin/UniSemi/internal/infrastructure/persistence/storetest"
)

func startPostgres(t *testing.T) *Connection {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("unisemi"),
		tcpostgres.WithUsername("unisemi"),
		tcpostgres.WithPassword("unisemi"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := DefaultConfig(dsn)
	cfg.QueryTimeout = 10 * time.Second
	conn, err := NewConnection(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	require.NoError(t, NewMigrator(conn).Migrate(ctx))
	return conn
}

func truncate(t *testing.T, conn *Connection, tables ...string) {
	t.Helper()
	err := conn.WithTx(context.Background(), func(ctx context.Context, tx pgx.Tx) error {
		for _, table := range tables {
			if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRecordStore_Integration(t *testing.T) {
	conn := startPostgres(t)

	storetest.RunRecordStore(t, func(t *testing.T) academic.RecordStore {
		truncate(t, conn, "student_history_versions", "student_records", "student_record_tombstones")
		return NewRecordStore(conn)
	})
}

func TestAuditSink_Integration(t *testing.T) {
	conn := startPostgres(t)

	storetest.RunAuditSink(t, func(t *testing.T) audit.Sink {
		truncate(t, conn, "audit_log")
		return NewAuditSink(conn)
	})
}

func TestMigrator_Status(t *testing.T) {
	conn := startPostgres(t)

	status, err := NewMigrator(conn).Status(context.Background())
	require.NoError(t, err)
	require.Len(t, status, len(Migrations()))
	for _, m := range status {
		require.True(t, m.IsApplied, "migration %d not applied", m.Version)
	}
}

func TestMigrator_RollbackAndReapply(t *testing.T) {
	conn := startPostgres(t)
	ctx := context.Background()
	m := NewMigrator(conn)

	require.NoError(t, m.Rollback(ctx, 1))
	status, err := m.Status(ctx)
	require.NoError(t, err)
	require.True(t, status[0].IsApplied)
	require.False(t, status[1].IsApplied)
	require.False(t, status[2].IsApplied)

	require.NoError(t, m.Migrate(ctx))
	require.NoError(t, m.Migrate(ctx))
	status, err = m.Status(ctx)
	require.NoError(t, err)
	for _, s := range status {
		require.True(t, s.IsApplied, "migration %d not applied", s.Version)
	}
}
