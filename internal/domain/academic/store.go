package academic

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD STORE CONTRACT
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Column families and qualified column names of a stored record.
const (
	FamilyInfo     = "info"
	FamilyAcademic = "academic"

	ColName    = "info:name"
	ColDept    = "info:dept"
	ColGPA     = "info:gpa"
	ColCGPA    = "info:cgpa"
	ColHistory = "academic:history"
)

// SnapshotRetention is the number of history versions kept per record.
const SnapshotRetention = 5

// Columns maps qualified column names to their text values.
type Columns map[string]string

// Get returns the column value or def when it is missing.
func (c Columns) Get(col, def string) string {
	if v, ok := c[col]; ok {
		return v
	}
	return def
}

// Row is a stored record together with its optimistic concurrency version.
type Row struct {
	Columns Columns
	Version int64
}

// KeyedRow is a Row returned by a scan.
type KeyedRow struct {
	Key string
	Row
}

// Version is one retained value of a versioned column.
type Version struct {
	Value     string
	WrittenAt time.Time
}

// RecordStore is key/value storage with a versioned history column.
//
// Errors are translated by implementations: shared.ErrNotFound for absent
// rows, shared.ErrConcurrentModification when the expected version does not
// match and shared.ErrServiceUnavailable when the backend cannot be reached.
type RecordStore interface {
	// GetRow returns the row stored under key.
	GetRow(ctx context.Context, key string) (Row, error)

	// PutRow replaces the row under key when its current version equals
	// expected (0 means the row must not exist yet) and returns the new
	// version. When cols contains ColHistory the value is also retained as
	// a new history version, trimming the oldest beyond the retention.
	PutRow(ctx context.Context, key string, cols Columns, expected int64) (int64, error)

	// Scan returns up to limit rows ordered by key.
	Scan(ctx context.Context, limit int) ([]KeyedRow, error)

	// DeleteRow removes the row and its retained versions. Removing an
	// absent row is not an error.
	DeleteRow(ctx context.Context, key string) error

	// GetVersions returns up to max retained values of column, newest first.
	GetVersions(ctx context.Context, key, column string, max int) ([]Version, error)

	// EnsureSchema idempotently provisions the storage layout.
	EnsureSchema(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// RecordColumns converts a record into its stored columns.
func RecordColumns(r *StudentRecord) (Columns, error) {
	blob, err := EncodeHistory(r.History)
	if err != nil {
		return nil, err
	}
	return Columns{
		ColName:    r.Name,
		ColDept:    r.Department,
		ColGPA:     r.CurrentGPA,
		ColCGPA:    r.CGPA,
		ColHistory: blob,
	}, nil
}

// RecordFromRow rebuilds a record from its stored row.
func RecordFromRow(matric string, row Row) (*StudentRecord, error) {
	history, err := DecodeHistory(row.Columns.Get(ColHistory, "[]"))
	if err != nil {
		return nil, err
	}
	return &StudentRecord{
		MatricNumber: matric,
		Name:         row.Columns.Get(ColName, ""),
		Department:   row.Columns.Get(ColDept, ""),
		CurrentGPA:   row.Columns.Get(ColGPA, ZeroGPA),
		CGPA:         row.Columns.Get(ColCGPA, ZeroGPA),
		History:      history,
		Version:      row.Version,
	}, nil
}

// SummaryFromRow builds the listing projection without decoding history.
func SummaryFromRow(kr KeyedRow) StudentSummary {
	return StudentSummary{
		MatricNumber: kr.Key,
		Name:         kr.Columns.Get(ColName, ""),
		Department:   kr.Columns.Get(ColDept, ""),
		CurrentGPA:   kr.Columns.Get(ColGPA, ZeroGPA),
		CGPA:         kr.Columns.Get(ColCGPA, ZeroGPA),
	}
}
