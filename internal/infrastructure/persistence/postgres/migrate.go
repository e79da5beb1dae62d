package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrMigrationFailed wraps every migration failure.
var ErrMigrationFailed = errors.New("postgres: migration failed")

// migrationLockID serializes migrators across server instances sharing one
// database.
const migrationLockID int64 = 0x756e6973656d69

// Migration is one numbered schema step.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationState pairs a migration with whether the database has it.
type MigrationState struct {
	Migration
	IsApplied bool
	AppliedAt time.Time
}

// Migrations returns the schema steps in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_student_records", Up: migration001Up, Down: migration001Down},
		{Version: 2, Name: "create_audit_log", Up: migration002Up, Down: migration002Down},
		{Version: 3, Name: "create_record_tombstones", Up: migration003Up, Down: migration003Down},
	}
}

// Migrator applies Migrations and records them in schema_migrations.
type Migrator struct {
	conn  *Connection
	steps []Migration
}

// NewMigrator creates a migrator for the built-in migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, steps: Migrations()}
}

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`

// Migrate applies every pending migration, each in its own transaction.
// Running it concurrently from several processes is safe.
func (m *Migrator) Migrate(ctx context.Context) error {
	return m.locked(ctx, func(ctx context.Context, tx pgx.Tx, applied map[int]time.Time) error {
		for _, step := range m.steps {
			if _, ok := applied[step.Version]; ok {
				continue
			}
			if step.Up == "" {
				return fmt.Errorf("%w: migration %d has no up script", ErrMigrationFailed, step.Version)
			}
			if _, err := tx.Exec(ctx, step.Up); err != nil {
				return fmt.Errorf("%w: %d_%s: %w", ErrMigrationFailed, step.Version, step.Name, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
				step.Version, step.Name,
			); err != nil {
				return fmt.Errorf("%w: record %d: %w", ErrMigrationFailed, step.Version, err)
			}
		}
		return nil
	})
}

// Rollback reverts applied migrations newer than version, newest first.
func (m *Migrator) Rollback(ctx context.Context, version int) error {
	return m.locked(ctx, func(ctx context.Context, tx pgx.Tx, applied map[int]time.Time) error {
		for i := len(m.steps) - 1; i >= 0; i-- {
			step := m.steps[i]
			if step.Version <= version {
				break
			}
			if _, ok := applied[step.Version]; !ok {
				continue
			}
			if _, err := tx.Exec(ctx, step.Down); err != nil {
				return fmt.Errorf("%w: revert %d_%s: %w", ErrMigrationFailed, step.Version, step.Name, err)
			}
			if _, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, step.Version); err != nil {
				return fmt.Errorf("%w: unrecord %d: %w", ErrMigrationFailed, step.Version, err)
			}
		}
		return nil
	})
}

// Status lists every known migration with its applied time, if any.
func (m *Migrator) Status(ctx context.Context) ([]MigrationState, error) {
	var out []MigrationState
	err := m.conn.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		if _, err := conn.Exec(ctx, createMigrationsTable); err != nil {
			return err
		}
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		out = make([]MigrationState, len(m.steps))
		for i, step := range m.steps {
			at, ok := applied[step.Version]
			out[i] = MigrationState{Migration: step, IsApplied: ok, AppliedAt: at}
		}
		return nil
	})
	return out, err
}

// locked runs fn in one transaction holding the migration advisory lock.
func (m *Migrator) locked(ctx context.Context, fn func(context.Context, pgx.Tx, map[int]time.Time) error) error {
	return m.conn.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
			return fmt.Errorf("%w: lock: %w", ErrMigrationFailed, err)
		}
		if _, err := tx.Exec(ctx, createMigrationsTable); err != nil {
			return fmt.Errorf("%w: create schema_migrations: %w", ErrMigrationFailed, err)
		}
		applied, err := appliedVersions(ctx, tx)
		if err != nil {
			return err
		}
		return fn(ctx, tx, applied)
	})
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func appliedVersions(ctx context.Context, q querier) (map[int]time.Time, error) {
	rows, err := q.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	applied := make(map[int]time.Time)
	for rows.Next() {
		var (
			v  int
			at time.Time
		)
		if err := rows.Scan(&v, &at); err != nil {
			rows.Close()
			return nil, err
		}
		applied[v] = at
	}
	rows.Close()
	return applied, rows.Err()
}
