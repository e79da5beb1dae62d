// Package storetest holds behaviour tests shared by every RecordStore and
// audit Sink implementation.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KingMavin/UniSemi/internal/domain/academic"
	"github.com/KingMavin/UniSemi/internal/domain/audit"
	"github.com/KingMavin/UniSemi/internal/domain/shared"
)

// RecordStoreFactory returns an empty, schema-ready store. Each call must be
// isolated from the others.
type RecordStoreFactory func(t *testing.T) academic.RecordStore

// AuditSinkFactory returns an empty sink.
type AuditSinkFactory func(t *testing.T) audit.Sink

func columns(name, history string) academic.Columns {
	return academic.Columns{
		academic.ColName:    name,
		academic.ColDept:    "Computing",
		academic.ColGPA:     "4.00",
		academic.ColCGPA:    "4.00",
		academic.ColHistory: history,
	}
}

func historyBlob(n int) string {
	h := academic.History{}
	for i := 0; i < n; i++ {
		h = append(h, academic.Semester{Level: "100", Name: fmt.Sprintf("S%d", i)})
	}
	blob, _ := academic.EncodeHistory(h)
	return blob
}

// RunRecordStore exercises the RecordStore contract.
func RunRecordStore(t *testing.T, newStore RecordStoreFactory) {
	t.Run("get absent row", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetRow(context.Background(), "NOPE")
		require.Error(t, err)
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("put and get", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		v, err := s.PutRow(ctx, "X1", columns("Ada", historyBlob(1)), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)

		row, err := s.GetRow(ctx, "X1")
		require.NoError(t, err)
		assert.Equal(t, "Ada", row.Columns[academic.ColName])
		assert.Equal(t, historyBlob(1), row.Columns[academic.ColHistory])
		assert.Equal(t, int64(1), row.Version)
	})

	t.Run("version mismatch is a conflict", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		_, err := s.PutRow(ctx, "X1", columns("Ada", historyBlob(1)), 0)
		require.NoError(t, err)

		_, err = s.PutRow(ctx, "X1", columns("Ada", historyBlob(2)), 0)
		assert.True(t, shared.IsConflict(err), "insert over existing row: %v", err)

		_, err = s.PutRow(ctx, "X1", columns("Ada", historyBlob(2)), 7)
		assert.True(t, shared.IsConflict(err), "stale version: %v", err)

		v, err := s.PutRow(ctx, "X1", columns("Grace", historyBlob(2)), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), v)

		row, err := s.GetRow(ctx, "X1")
		require.NoError(t, err)
		assert.Equal(t, "Grace", row.Columns[academic.ColName])
	})

	t.Run("update of absent row is a conflict", func(t *testing.T) {
		s := newStore(t)
		_, err := s.PutRow(context.Background(), "GONE", columns("Ada", historyBlob(1)), 3)
		assert.True(t, shared.IsConflict(err), "%v", err)
	})

	t.Run("versions newest first and trimmed", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		var version int64
		for i := 1; i <= 8; i++ {
			v, err := s.PutRow(ctx, "X1", columns("Ada", historyBlob(i)), version)
			require.NoError(t, err)
			version = v
			time.Sleep(2 * time.Millisecond)
		}

		versions, err := s.GetVersions(ctx, "X1", academic.ColHistory, 10)
		require.NoError(t, err)
		require.Len(t, versions, academic.SnapshotRetention)
		assert.Equal(t, historyBlob(8), versions[0].Value)
		assert.Equal(t, historyBlob(4), versions[4].Value)
		for i := 1; i < len(versions); i++ {
			assert.False(t, versions[i].WrittenAt.After(versions[i-1].WrittenAt))
		}

		limited, err := s.GetVersions(ctx, "X1", academic.ColHistory, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("scan ordered by key and limited", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		for _, k := range []string{"C3", "A1", "B2"} {
			_, err := s.PutRow(ctx, k, columns("n-"+k, historyBlob(1)), 0)
			require.NoError(t, err)
		}

		rows, err := s.Scan(ctx, 2)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "A1", rows[0].Key)
		assert.Equal(t, "B2", rows[1].Key)
		assert.Equal(t, "n-A1", rows[0].Columns[academic.ColName])
	})

	t.Run("delete is idempotent and drops versions", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		_, err := s.PutRow(ctx, "X1", columns("Ada", historyBlob(1)), 0)
		require.NoError(t, err)

		require.NoError(t, s.DeleteRow(ctx, "X1"))
		require.NoError(t, s.DeleteRow(ctx, "X1"))
		require.NoError(t, s.DeleteRow(ctx, "NEVER"))

		_, err = s.GetRow(ctx, "X1")
		assert.True(t, shared.IsNotFound(err))

		versions, err := s.GetVersions(ctx, "X1", academic.ColHistory, 5)
		require.NoError(t, err)
		assert.Empty(t, versions)
	})

	t.Run("re-created row continues versions after delete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		v1, err := s.PutRow(ctx, "X1", columns("Ada", historyBlob(1)), 0)
		require.NoError(t, err)
		stale, err := s.PutRow(ctx, "X1", columns("Ada", historyBlob(2)), v1)
		require.NoError(t, err)

		require.NoError(t, s.DeleteRow(ctx, "X1"))

		_, err = s.PutRow(ctx, "X1", columns("Grace", historyBlob(1)), stale)
		assert.True(t, shared.IsConflict(err), "update of deleted row: %v", err)

		fresh, err := s.PutRow(ctx, "X1", columns("Grace", historyBlob(1)), 0)
		require.NoError(t, err)
		assert.Greater(t, fresh, stale)

		_, err = s.PutRow(ctx, "X1", columns("Eve", historyBlob(3)), stale)
		assert.True(t, shared.IsConflict(err), "version read before the delete: %v", err)

		row, err := s.GetRow(ctx, "X1")
		require.NoError(t, err)
		assert.Equal(t, "Grace", row.Columns[academic.ColName])
		assert.Equal(t, fresh, row.Version)

		again, err := s.PutRow(ctx, "X1", columns("Grace", historyBlob(2)), fresh)
		require.NoError(t, err)
		assert.Equal(t, fresh+1, again)
	})

	t.Run("concurrent inserts admit one winner", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		const writers = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.PutRow(ctx, "RACE", columns("w", historyBlob(1)), 0); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("ensure schema is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.EnsureSchema(context.Background()))
		require.NoError(t, s.EnsureSchema(context.Background()))
		require.NoError(t, s.Ping(context.Background()))
	})
}

// RunAuditSink exercises the audit Sink contract.
func RunAuditSink(t *testing.T, newSink AuditSinkFactory) {
	t.Run("scan reverse orders by id", func(t *testing.T) {
		ctx := context.Background()
		sink := newSink(t)

		clock := time.UnixMilli(1_700_000_000_000)
		gen := audit.NewIDGenerator(func() time.Time { return clock })
		var ids []string
		for i := 0; i < 6; i++ {
			e := gen.NewEntry(audit.ActionNewStudent, fmt.Sprintf("entry %d", i))
			require.NoError(t, sink.Append(ctx, e))
			ids = append(ids, e.ID)
			clock = clock.Add(time.Millisecond)
		}

		got, err := sink.ScanReverse(ctx, 4)
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, ids[5], got[0].ID)
		assert.Equal(t, ids[2], got[3].ID)
		assert.Equal(t, "entry 5", got[0].Details)
		assert.Equal(t, audit.ActionNewStudent, got[0].Action)
	})

	t.Run("scan reverse keeps append order within one millisecond", func(t *testing.T) {
		ctx := context.Background()
		sink := newSink(t)

		gen := audit.NewIDGenerator(func() time.Time { return time.UnixMilli(1_700_000_000_000) })
		var appended []audit.Entry
		for i := 0; i < 60; i++ {
			e := gen.NewEntry(audit.ActionUpdateStudent, fmt.Sprintf("entry %d", i))
			require.NoError(t, sink.Append(ctx, e))
			appended = append(appended, e)
		}

		const limit = 50
		got, err := sink.ScanReverse(ctx, limit)
		require.NoError(t, err)
		require.Len(t, got, limit)
		for i, e := range got {
			assert.Equal(t, appended[len(appended)-1-i].Details, e.Details, "position %d", i)
		}
	})

	t.Run("recreate empties the sink", func(t *testing.T) {
		ctx := context.Background()
		sink := newSink(t)

		gen := audit.NewIDGenerator(nil)
		require.NoError(t, sink.Append(ctx, gen.NewEntry(audit.ActionDeleteStudent, "gone")))
		require.NoError(t, sink.Recreate(ctx))

		got, err := sink.ScanReverse(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, got)

		require.NoError(t, sink.Append(ctx, gen.NewEntry(audit.ActionSystemReset, "reset")))
		got, err = sink.ScanReverse(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}
