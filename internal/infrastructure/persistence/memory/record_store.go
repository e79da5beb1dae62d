// Package memory implements the record store and audit sink in process
// memory, for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/KingMavin/UniSemi/internal/domain/academic"
	"github.com/KingMavin/UniSemi/internal/domain/shared"
)

type record struct {
	columns  academic.Columns
	version  int64
	versions []academic.Version // newest first
}

// RecordStore implements academic.RecordStore in memory.
type RecordStore struct {
	mu        sync.RWMutex
	rows      map[string]*record
	deleted   map[string]int64 // last version of each deleted row
	retention int
	now       func() time.Time
}

// Option configures a RecordStore.
type Option func(*RecordStore)

// WithRetention sets how many history versions are kept per record.
func WithRetention(n int) Option {
	return func(s *RecordStore) {
		if n > 0 {
			s.retention = n
		}
	}
}

// WithClock sets the clock used to timestamp history versions.
func WithClock(now func() time.Time) Option {
	return func(s *RecordStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRecordStore creates an empty store.
func NewRecordStore(opts ...Option) *RecordStore {
	s := &RecordStore{
		rows:      make(map[string]*record),
		deleted:   make(map[string]int64),
		retention: academic.SnapshotRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ academic.RecordStore = (*RecordStore)(nil)

// EnsureSchema is a no-op.
func (s *RecordStore) EnsureSchema(ctx context.Context) error { return ctx.Err() }

// Ping is a no-op.
func (s *RecordStore) Ping(ctx context.Context) error { return ctx.Err() }

// GetRow returns a copy of the row stored under key.
func (s *RecordStore) GetRow(ctx context.Context, key string) (academic.Row, error) {
	if err := ctx.Err(); err != nil {
		return academic.Row{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rows[key]
	if !ok {
		return academic.Row{}, shared.ErrRecordNotFound
	}
	return academic.Row{Columns: copyColumns(r.columns), Version: r.version}, nil
}

// PutRow writes the row when its version equals expected.
func (s *RecordStore) PutRow(ctx context.Context, key string, cols academic.Columns, expected int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.rows[key]
	var current int64
	if exists {
		current = r.version
	}
	if current != expected {
		return 0, shared.ErrRecordConflict
	}

	if !exists {
		r = &record{columns: make(academic.Columns)}
		s.rows[key] = r
		current = s.deleted[key]
		delete(s.deleted, key)
	}
	for col, v := range cols {
		r.columns[col] = v
	}
	r.version = current + 1

	if history, ok := cols[academic.ColHistory]; ok {
		r.versions = append([]academic.Version{{Value: history, WrittenAt: s.now().UTC()}}, r.versions...)
		if len(r.versions) > s.retention {
			r.versions = r.versions[:s.retention]
		}
	}
	return r.version, nil
}

// Scan returns up to limit rows ordered by key, without history.
func (s *RecordStore) Scan(ctx context.Context, limit int) ([]academic.KeyedRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.rows))
	for k := range s.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if limit >= 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	out := make([]academic.KeyedRow, 0, len(keys))
	for _, k := range keys {
		cols := copyColumns(s.rows[k].columns)
		delete(cols, academic.ColHistory)
		out = append(out, academic.KeyedRow{Key: k, Row: academic.Row{Columns: cols, Version: s.rows[k].version}})
	}
	return out, nil
}

// DeleteRow removes the row and its versions. Its last version is
// remembered so a re-created row continues numbering after it.
func (s *RecordStore) DeleteRow(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rows[key]; ok {
		s.deleted[key] = r.version
		delete(s.rows, key)
	}
	return nil
}

// GetVersions returns retained history values, newest first.
func (s *RecordStore) GetVersions(ctx context.Context, key, column string, max int) ([]academic.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if column != academic.ColHistory {
		return nil, shared.NewDomainError("store", "GetVersions", shared.ErrInvalidInput, "column "+column+" is not versioned")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rows[key]
	if !ok || max <= 0 {
		return nil, nil
	}
	n := len(r.versions)
	if n > max {
		n = max
	}
	out := make([]academic.Version, n)
	copy(out, r.versions[:n])
	return out, nil
}

// Len returns the number of stored rows.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func copyColumns(c academic.Columns) academic.Columns {
	out := make(academic.Columns, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
