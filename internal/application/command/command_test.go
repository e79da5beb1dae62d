package command

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
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

type recorded struct {
	action  audit.Action
	details string
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []recorded
}

func (f *fakeRecorder) Record(_ context.Context, action audit.Action, details string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, recorded{action, details})
}

func (f *fakeRecorder) actions() []audit.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]audit.Action, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.action
	}
	return out
}

func course(code string, score, unit float64) academic.Course {
	return academic.Course{Code: code, Score: academic.Num(score), Unit: academic.Num(unit)}
}

func yield(context.Context, time.Duration) error {
	runtime.Gosched()
	return nil
}

func newSaveHandler(store academic.RecordStore, rec audit.Recorder) *SaveResultHandler {
	return NewSaveResultHandler(store, nil, rec, SaveResultHandlerConfig{Sleep: yield})
}

func TestSaveResult_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	rec := &fakeRecorder{}
	h := newSaveHandler(store, rec)

	first, err := h.Handle(ctx, SaveResultCommand{
		MatricNumber: "X1",
		Name:         "Ada Lovelace",
		Department:   "Computing",
		Level:        "100",
		Semester:     "First",
		Courses:      []academic.Course{course("CSC101", 72, 3), course("MTH101", 55, 2)},
	})
	require.NoError(t, err)
	assert.Equal(t, "4.20", first.GPA)
	assert.Equal(t, "4.20", first.CGPA)
	assert.True(t, first.Created)
	assert.Equal(t, 1, first.Attempts)

	second, err := h.Handle(ctx, SaveResultCommand{
		MatricNumber: "X1",
		Name:         "Ada Lovelace",
		Department:   "Computing",
		Level:        "100",
		Semester:     "Second",
		Courses:      []academic.Course{course("CSC102", 40, 3)},
	})
	require.NoError(t, err)
	assert.Equal(t, "0.00", second.GPA)
	assert.Equal(t, "2.63", second.CGPA)
	assert.False(t, second.Created)

	row, err := store.GetRow(ctx, "X1")
	require.NoError(t, err)
	record, err := academic.RecordFromRow("X1", row)
	require.NoError(t, err)
	require.Len(t, record.History, 2)
	assert.Equal(t, "0.00", record.CurrentGPA)
	assert.Equal(t, "2.63", record.CGPA)
	assert.Equal(t, "A", record.History[0].Courses[0].Grade)
	assert.Equal(t, "C", record.History[0].Courses[1].Grade)
	assert.Equal(t, "F", record.History[1].Courses[0].Grade)

	assert.Equal(t, []audit.Action{audit.ActionNewStudent, audit.ActionUpdateStudent}, rec.actions())
	assert.Equal(t, "Created X1", rec.entries[0].details)
	assert.Equal(t, "Updated X1 - 100 Lvl Second Sem", rec.entries[1].details)
}

func TestSaveResult_ResubmissionReplacesSemester(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	h := newSaveHandler(store, &fakeRecorder{})

	submit := func(score float64) *SaveResultResult {
		res, err := h.Handle(ctx, SaveResultCommand{
			MatricNumber: "X1",
			Courses:      []academic.Course{course("CSC101", score, 3)},
		})
		require.NoError(t, err)
		return res
	}

	submit(40)
	res := submit(80)
	assert.Equal(t, "5.00", res.CGPA)

	row, err := store.GetRow(ctx, "X1")
	require.NoError(t, err)
	record, err := academic.RecordFromRow("X1", row)
	require.NoError(t, err)
	require.Len(t, record.History, 1)
	assert.Equal(t, academic.DefaultLevel, record.History[0].Level)
	assert.Equal(t, academic.DefaultSemester, record.History[0].Name)
}

func TestSaveResult_OverwritesIdentity(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	h := newSaveHandler(store, &fakeRecorder{})

	_, err := h.Handle(ctx, SaveResultCommand{MatricNumber: "X1", Name: "Old", Department: "Old Dept"})
	require.NoError(t, err)
	_, err = h.Handle(ctx, SaveResultCommand{MatricNumber: "X1", Name: "New", Department: "New Dept", Semester: "Second"})
	require.NoError(t, err)

	row, err := store.GetRow(ctx, "X1")
	require.NoError(t, err)
	assert.Equal(t, "New", row.Columns[academic.ColName])
	assert.Equal(t, "New Dept", row.Columns[academic.ColDept])
}

func TestSaveResult_RejectsMalformedMatric(t *testing.T) {
	store := memory.NewRecordStore()
	h := newSaveHandler(store, &fakeRecorder{})

	for _, matric := range []string{"", "   ", "undefined", academic.SeedMatric} {
		_, err := h.Handle(context.Background(), SaveResultCommand{MatricNumber: matric})
		require.Error(t, err, "matric %q", matric)
		assert.True(t, shared.IsValidation(err), "matric %q: %v", matric, err)
	}
	assert.Equal(t, 0, store.Len())
}

func TestSaveResult_CorruptHistoryFails(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	_, err := store.PutRow(ctx, "X1", academic.Columns{academic.ColHistory: "{not json"}, 0)
	require.NoError(t, err)

	rec := &fakeRecorder{}
	_, err = newSaveHandler(store, rec).Handle(ctx, SaveResultCommand{MatricNumber: "X1"})
	require.Error(t, err)
	assert.True(t, shared.IsCorrupt(err))
	assert.Empty(t, rec.actions())
}

func TestSaveResult_ConcurrentSavesLoseNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	rec := &fakeRecorder{}
	m := metrics.New(prometheus.NewRegistry())

	const writers = 16
	h := NewSaveResultHandler(store, nil, rec, SaveResultHandlerConfig{
		MaxAttempts: writers,
		Sleep:       yield,
		Metrics:     m,
	})

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.Handle(ctx, SaveResultCommand{
				MatricNumber: "RACE",
				Level:        fmt.Sprintf("%d", 100+i),
				Semester:     "First",
				Courses:      []academic.Course{course("C", 70, 1)},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	row, err := store.GetRow(ctx, "RACE")
	require.NoError(t, err)
	record, err := academic.RecordFromRow("RACE", row)
	require.NoError(t, err)
	assert.Len(t, record.History, writers)
	assert.Equal(t, int64(writers), row.Version)

	created := 0
	for _, a := range rec.actions() {
		if a == audit.ActionNewStudent {
			created++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, float64(writers), testutil.ToFloat64(m.ResultsSaved.WithLabelValues("new"))+testutil.ToFloat64(m.ResultsSaved.WithLabelValues("update")))
}

// conflictingStore always loses the version race.
type conflictingStore struct {
	academic.RecordStore
	puts int
}

func (c *conflictingStore) PutRow(context.Context, string, academic.Columns, int64) (int64, error) {
	c.puts++
	return 0, shared.ErrRecordConflict
}

func TestSaveResult_GivesUpAfterMaxAttempts(t *testing.T) {
	store := &conflictingStore{RecordStore: memory.NewRecordStore()}
	h := NewSaveResultHandler(store, nil, &fakeRecorder{}, SaveResultHandlerConfig{MaxAttempts: 3, Sleep: yield})

	_, err := h.Handle(context.Background(), SaveResultCommand{MatricNumber: "X1"})
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))
	assert.Equal(t, 3, store.puts)
}

type unavailableStore struct {
	academic.RecordStore
}

func (unavailableStore) GetRow(context.Context, string) (academic.Row, error) {
	return academic.Row{}, shared.ErrStoreUnavailable
}

func TestSaveResult_StoreUnavailable(t *testing.T) {
	h := newSaveHandler(unavailableStore{memory.NewRecordStore()}, &fakeRecorder{})

	_, err := h.Handle(context.Background(), SaveResultCommand{MatricNumber: "X1"})
	assert.True(t, shared.IsUnavailable(err))
}

type fixedCalculator struct {
	value string
	err   error
}

func (f fixedCalculator) CGPA(context.Context, string, academic.History) (string, error) {
	return f.value, f.err
}

func TestSaveResult_UsesCalculator(t *testing.T) {
	store := memory.NewRecordStore()
	h := NewSaveResultHandler(store, fixedCalculator{value: "3.33"}, &fakeRecorder{}, SaveResultHandlerConfig{})

	res, err := h.Handle(context.Background(), SaveResultCommand{MatricNumber: "X1", Courses: []academic.Course{course("A", 80, 3)}})
	require.NoError(t, err)
	assert.Equal(t, "5.00", res.GPA)
	assert.Equal(t, "3.33", res.CGPA)

	failing := NewSaveResultHandler(store, fixedCalculator{err: errors.New("boom")}, &fakeRecorder{}, SaveResultHandlerConfig{})
	_, err = failing.Handle(context.Background(), SaveResultCommand{MatricNumber: "X2"})
	assert.Error(t, err)
}

func TestDeleteStudent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	rec := &fakeRecorder{}

	_, err := newSaveHandler(store, &fakeRecorder{}).Handle(ctx, SaveResultCommand{MatricNumber: "X1"})
	require.NoError(t, err)

	h := NewDeleteStudentHandler(store, rec, nil)
	require.NoError(t, h.Handle(ctx, DeleteStudentCommand{MatricNumber: "X1"}))
	require.NoError(t, h.Handle(ctx, DeleteStudentCommand{MatricNumber: "X1"}))
	require.NoError(t, h.Handle(ctx, DeleteStudentCommand{MatricNumber: "NEVER"}))

	_, err = store.GetRow(ctx, "X1")
	assert.True(t, shared.IsNotFound(err))
	versions, err := store.GetVersions(ctx, "X1", academic.ColHistory, 5)
	require.NoError(t, err)
	assert.Empty(t, versions)

	assert.Equal(t, []audit.Action{audit.ActionDeleteStudent, audit.ActionDeleteStudent, audit.ActionDeleteStudent}, rec.actions())
	assert.Equal(t, "Deleted X1", rec.entries[0].details)

	err = h.Handle(ctx, DeleteStudentCommand{MatricNumber: "undefined"})
	assert.True(t, shared.IsValidation(err))
}

// sinkRecorder writes straight to a sink.
type sinkRecorder struct {
	sink audit.Sink
	ids  *audit.IDGenerator
}

func (s sinkRecorder) Record(ctx context.Context, action audit.Action, details string) {
	_ = s.sink.Append(ctx, s.ids.NewEntry(action, details))
}

type countingFlusher struct{ calls int }

func (c *countingFlusher) Flush(context.Context) error {
	c.calls++
	return nil
}

func TestClearAuditLog_LeavesOnlyReset(t *testing.T) {
	ctx := context.Background()
	sink := memory.NewAuditSink()
	rec := sinkRecorder{sink: sink, ids: audit.NewIDGenerator(nil)}
	for i := 0; i < 7; i++ {
		rec.Record(ctx, audit.ActionNewStudent, "x")
	}

	flusher := &countingFlusher{}
	require.NoError(t, NewClearAuditLogHandler(sink, rec, flusher, nil).Handle(ctx))

	entries, err := sink.ScanReverse(ctx, 100)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionSystemReset, entries[0].Action)
	assert.Equal(t, SystemResetDetails, entries[0].Details)
	assert.Equal(t, 2, flusher.calls)
}
