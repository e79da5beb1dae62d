package resilient

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KingMavin/UniSemi/internal/domain/academic"
	"github.com/KingMavin/UniSemi/internal/domain/audit"
	"github.com/KingMavin/UniSemi/internal/domain/shared"
	"github.com/KingMavin/UniSemi/internal/infrastructure/metrics"
	"github.com/KingMavin/UniSemi/internal/infrastructure/persistence/memory"
)

var errDown = shared.WrapError("store", "dial", shared.ErrServiceUnavailable, "unreachable", errors.New("connection refused"))

// flakyStore fails the first n calls of every operation with errDown.
type flakyStore struct {
	academic.RecordStore
	failures int32
	calls    atomic.Int32
	err      error
}

func (f *flakyStore) fail() error {
	if f.calls.Add(1) <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyStore) GetRow(ctx context.Context, key string) (academic.Row, error) {
	if err := f.fail(); err != nil {
		return academic.Row{}, err
	}
	return f.RecordStore.GetRow(ctx, key)
}

func (f *flakyStore) DeleteRow(ctx context.Context, key string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.RecordStore.DeleteRow(ctx, key)
}

type recordedSleep struct {
	delays []time.Duration
}

func (r *recordedSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newFlaky(failures int32, err error) *flakyStore {
	inner := memory.NewRecordStore()
	_, _ = inner.PutRow(context.Background(), "CSC/1", academic.Columns{academic.ColName: "Ada"}, 0)
	return &flakyStore{RecordStore: inner, failures: failures, err: err}
}

func TestRecordStore_RetriesOnceAfterDelay(t *testing.T) {
	flaky := newFlaky(1, errDown)
	slept := &recordedSleep{}
	m := metrics.New(prometheus.NewRegistry())
	store := NewRecordStore(flaky, NewPolicy("test", 250*time.Millisecond, WithSleep(slept.sleep), WithMetrics(m)))

	row, err := store.GetRow(context.Background(), "CSC/1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", row.Columns[academic.ColName])
	assert.Equal(t, int32(2), flaky.calls.Load())
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, slept.delays)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreRetries.WithLabelValues("GetRow")))
}

func TestRecordStore_ExactlyTwoAttempts(t *testing.T) {
	flaky := newFlaky(10, errDown)
	slept := &recordedSleep{}
	m := metrics.New(prometheus.NewRegistry())
	store := NewRecordStore(flaky, NewPolicy("test", time.Second, WithSleep(slept.sleep), WithMetrics(m)))

	_, err := store.GetRow(context.Background(), "CSC/1")
	require.Error(t, err)
	assert.True(t, shared.IsUnavailable(err))
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, shared.ErrAuditSinkUnavailable)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, int32(2), flaky.calls.Load())
	assert.Len(t, slept.delays, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreUnavailable.WithLabelValues("GetRow")))
}

func TestRecordStore_NonConnectivityErrorsAreNotRetried(t *testing.T) {
	flaky := newFlaky(10, shared.ErrRecordConflict)
	slept := &recordedSleep{}
	store := NewRecordStore(flaky, NewPolicy("test", time.Second, WithSleep(slept.sleep)))

	err := store.DeleteRow(context.Background(), "CSC/1")
	assert.True(t, shared.IsConflict(err))
	assert.Equal(t, int32(1), flaky.calls.Load())
	assert.Empty(t, slept.delays)
}

func TestRecordStore_NotFoundPassesThrough(t *testing.T) {
	store := NewRecordStore(memory.NewRecordStore(), NewPolicy("test", time.Millisecond))

	_, err := store.GetRow(context.Background(), "NOPE")
	assert.True(t, shared.IsNotFound(err))
}

func TestRecordStore_CancelledDuringDelay(t *testing.T) {
	flaky := newFlaky(10, errDown)
	ctx, cancel := context.WithCancel(context.Background())
	store := NewRecordStore(flaky, NewPolicy("test", time.Second, WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})))

	_, err := store.GetRow(ctx, "CSC/1")
	assert.True(t, shared.IsUnavailable(err))
	assert.Equal(t, int32(1), flaky.calls.Load())
}

type flakySink struct {
	audit.Sink
	calls atomic.Int32
}

func (f *flakySink) Append(ctx context.Context, e audit.Entry) error {
	if f.calls.Add(1) == 1 {
		return errDown
	}
	return f.Sink.Append(ctx, e)
}

func TestAuditSink_RetriesAppend(t *testing.T) {
	inner := memory.NewAuditSink()
	sink := NewAuditSink(&flakySink{Sink: inner}, NewPolicy("test", time.Millisecond, WithSleep(func(context.Context, time.Duration) error { return nil })))

	e := audit.NewIDGenerator(nil).NewEntry(audit.ActionNewStudent, "x")
	require.NoError(t, sink.Append(context.Background(), e))
	assert.Equal(t, 1, inner.Len())

	got, err := sink.ScanReverse(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e.ID, got[0].ID)
}

// downSink fails every call with errDown.
type downSink struct{ audit.Sink }

func (downSink) ScanReverse(context.Context, int) ([]audit.Entry, error) { return nil, errDown }

func TestAuditSink_ReportsSinkUnavailable(t *testing.T) {
	sink := NewAuditSink(downSink{Sink: memory.NewAuditSink()}, NewPolicy("test", time.Millisecond, WithSleep(func(context.Context, time.Duration) error { return nil })))

	_, err := sink.ScanReverse(context.Background(), 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrAuditSinkUnavailable)
	assert.NotErrorIs(t, err, shared.ErrStoreUnavailable)
	assert.True(t, shared.IsUnavailable(err))
}

func TestNewPolicy_DefaultDelay(t *testing.T) {
	p := NewPolicy("test", 0)
	assert.Equal(t, time.Second, p.delay)
}
