package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KingMavin/UniSemi/internal/domain/academic"
	"github.com/KingMavin/UniSemi/internal/domain/shared"
)

// RecordStore implements academic.RecordStore for PostgreSQL.
type RecordStore struct {
	conn      *Connection
	retention int
	now       func() time.Time
}

// RecordStoreOption configures a RecordStore.
type RecordStoreOption func(*RecordStore)

// WithRetention sets how many history versions are kept per record.
func WithRetention(n int) RecordStoreOption {
	return func(s *RecordStore) {
		if n > 0 {
			s.retention = n
		}
	}
}

// WithClock sets the clock used to timestamp history versions.
func WithClock(now func() time.Time) RecordStoreOption {
	return func(s *RecordStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(conn *Connection, opts ...RecordStoreOption) *RecordStore {
	s := &RecordStore{
		conn:      conn,
		retention: academic.SnapshotRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ academic.RecordStore = (*RecordStore)(nil)

// EnsureSchema applies pending migrations.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	return translate("EnsureSchema", NewMigrator(s.conn).Migrate(ctx))
}

// Ping checks connectivity.
func (s *RecordStore) Ping(ctx context.Context) error {
	return translate("Ping", s.conn.Ping(ctx))
}

// GetRow returns the row stored under key.
func (s *RecordStore) GetRow(ctx context.Context, key string) (academic.Row, error) {
	const query = `
		SELECT name, department, gpa, cgpa, history, version
		FROM student_records
		WHERE matric = $1
	`

	var row academic.Row
	err := s.conn.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var name, dept, gpa, cgpa, history string
		var version int64
		if err := conn.QueryRow(ctx, query, key).Scan(&name, &dept, &gpa, &cgpa, &history, &version); err != nil {
			return err
		}
		row = academic.Row{
			Columns: academic.Columns{
				academic.ColName:    name,
				academic.ColDept:    dept,
				academic.ColGPA:     gpa,
				academic.ColCGPA:    cgpa,
				academic.ColHistory: history,
			},
			Version: version,
		}
		return nil
	})
	if IsNoRows(err) {
		return academic.Row{}, shared.ErrRecordNotFound
	}
	if err != nil {
		return academic.Row{}, translate("GetRow", err)
	}
	return row, nil
}

// PutRow writes the row when its version equals expected and retains the
// history column as a new version.
func (s *RecordStore) PutRow(ctx context.Context, key string, cols academic.Columns, expected int64) (int64, error) {
	writtenAt := s.now().UTC()
	name, dept, gpa, cgpa, history := columnArgs(cols)

	var newVersion int64
	err := s.conn.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if expected == 0 {
			const insert = `
				INSERT INTO student_records (matric, name, department, gpa, cgpa, history, version, created_at, updated_at)
				VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), COALESCE($4, '0.00'), COALESCE($5, '0.00'), COALESCE($6, '[]'),
					COALESCE((SELECT version FROM student_record_tombstones WHERE matric = $1), 0) + 1, $7, $7)
				ON CONFLICT (matric) DO NOTHING
				RETURNING version
			`
			err := tx.QueryRow(ctx, insert, key, name, dept, gpa, cgpa, history, writtenAt).Scan(&newVersion)
			if IsNoRows(err) {
				return shared.ErrRecordConflict
			}
			if err != nil {
				return err
			}
		} else {
			const update = `
				UPDATE student_records SET
					name = COALESCE($2, name),
					department = COALESCE($3, department),
					gpa = COALESCE($4, gpa),
					cgpa = COALESCE($5, cgpa),
					history = COALESCE($6, history),
					version = version + 1,
					updated_at = $7
				WHERE matric = $1 AND version = $8
				RETURNING version
			`
			err := tx.QueryRow(ctx, update, key, name, dept, gpa, cgpa, history, writtenAt, expected).Scan(&newVersion)
			if IsNoRows(err) {
				return shared.ErrRecordConflict
			}
			if err != nil {
				return err
			}
		}

		if history == nil {
			return nil
		}

		const insertVersion = `
			INSERT INTO student_history_versions (matric, value, written_at)
			VALUES ($1, $2, $3)
		`
		if _, err := tx.Exec(ctx, insertVersion, key, *history, writtenAt); err != nil {
			return err
		}

		const trim = `
			DELETE FROM student_history_versions
			WHERE matric = $1 AND id NOT IN (
				SELECT id FROM student_history_versions
				WHERE matric = $1
				ORDER BY written_at DESC, id DESC
				LIMIT $2
			)
		`
		_, err := tx.Exec(ctx, trim, key, s.retention)
		return err
	})

	switch {
	case err == nil:
		return newVersion, nil
	case shared.IsConflict(err):
		return 0, shared.ErrRecordConflict
	case IsUniqueViolation(err):
		return 0, shared.ErrRecordConflict
	default:
		return 0, translate("PutRow", err)
	}
}

// Scan returns up to limit rows ordered by matric. The history column is
// not loaded.
func (s *RecordStore) Scan(ctx context.Context, limit int) ([]academic.KeyedRow, error) {
	const query = `
		SELECT matric, name, department, gpa, cgpa, version
		FROM student_records
		ORDER BY matric
		LIMIT $1
	`

	var out []academic.KeyedRow
	err := s.conn.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var key, name, dept, gpa, cgpa string
			var version int64
			if err := rows.Scan(&key, &name, &dept, &gpa, &cgpa, &version); err != nil {
				return err
			}
			out = append(out, academic.KeyedRow{
				Key: key,
				Row: academic.Row{
					Columns: academic.Columns{
						academic.ColName: name,
						academic.ColDept: dept,
						academic.ColGPA:  gpa,
						academic.ColCGPA: cgpa,
					},
					Version: version,
				},
			})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, translate("Scan", err)
	}
	return out, nil
}

// DeleteRow removes the row; retained versions go with it via cascade. The
// row's last version is kept as a tombstone so a re-created row continues
// numbering after it.
func (s *RecordStore) DeleteRow(ctx context.Context, key string) error {
	const query = `
		WITH gone AS (
			DELETE FROM student_records WHERE matric = $1
			RETURNING matric, version
		)
		INSERT INTO student_record_tombstones (matric, version, deleted_at)
		SELECT matric, version, $2 FROM gone
		ON CONFLICT (matric) DO UPDATE SET
			version = GREATEST(student_record_tombstones.version, EXCLUDED.version),
			deleted_at = EXCLUDED.deleted_at
	`
	err := s.conn.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, query, key, s.now().UTC())
		return err
	})
	return translate("DeleteRow", err)
}

// GetVersions returns retained history values, newest first.
func (s *RecordStore) GetVersions(ctx context.Context, key, column string, max int) ([]academic.Version, error) {
	if column != academic.ColHistory {
		return nil, shared.NewDomainError("store", "GetVersions", shared.ErrInvalidInput, "column "+column+" is not versioned")
	}

	const query = `
		SELECT value, written_at
		FROM student_history_versions
		WHERE matric = $1
		ORDER BY written_at DESC, id DESC
		LIMIT $2
	`

	var out []academic.Version
	err := s.conn.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, key, max)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var v academic.Version
			if err := rows.Scan(&v.Value, &v.WrittenAt); err != nil {
				return err
			}
			out = append(out, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, translate("GetVersions", err)
	}
	return out, nil
}

// columnArgs turns present columns into query arguments; absent ones are nil
// so COALESCE keeps the stored value.
func columnArgs(cols academic.Columns) (name, dept, gpa, cgpa, history *string) {
	pick := func(col string) *string {
		if v, ok := cols[col]; ok {
			return &v
		}
		return nil
	}
	return pick(academic.ColName), pick(academic.ColDept), pick(academic.ColGPA), pick(academic.ColCGPA), pick(academic.ColHistory)
}
