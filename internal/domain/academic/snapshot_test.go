package academic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KingMavin/UniSemi/internal/domain/shared"
)

func encoded(t *testing.T, h History) string {
	t.Helper()
	blob, err := EncodeHistory(h)
	require.NoError(t, err)
	return blob
}

func TestSummaryAction(t *testing.T) {
	h := History{semester("100", "First"), semester("200", "Second")}
	assert.Equal(t, "Uploaded 200 Lvl Second Sem", SummaryAction(h))
	assert.Equal(t, "Cleared history", SummaryAction(History{}))
}

func TestSnapshots_NewestFirstAndCapped(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var versions []Version
	var h History
	for i := 0; i < 7; i++ {
		h = Merge(h, semester("100", string(rune('A'+i))))
		versions = append(versions, Version{Value: encoded(t, h), WrittenAt: base.Add(time.Duration(i) * time.Minute)})
	}

	snaps := Snapshots(versions, SnapshotRetention)
	require.Len(t, snaps, SnapshotRetention)
	assert.Equal(t, base.Add(6*time.Minute), snaps[0].Timestamp)
	assert.Equal(t, 7, snaps[0].SemesterCount)
	assert.Equal(t, "Uploaded 100 Lvl G Sem", snaps[0].SummaryAction)
	for i := 1; i < len(snaps); i++ {
		assert.True(t, snaps[i-1].Timestamp.After(snaps[i].Timestamp))
	}
}

func TestSnapshots_SkipsCorruptVersions(t *testing.T) {
	now := time.Now()
	versions := []Version{
		{Value: "{not json", WrittenAt: now},
		{Value: encoded(t, History{semester("100", "First")}), WrittenAt: now.Add(-time.Second)},
	}

	snaps := Snapshots(versions, SnapshotRetention)
	require.Len(t, snaps, 1)
	assert.Equal(t, 1, snaps[0].SemesterCount)
}

func TestDecodeHistory(t *testing.T) {
	h, err := DecodeHistory("")
	require.NoError(t, err)
	assert.Empty(t, h)

	h, err = DecodeHistory("null")
	require.NoError(t, err)
	assert.NotNil(t, h)

	_, err = DecodeHistory("[{")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrHistoryCorrupt)
	assert.True(t, shared.IsCorrupt(err))
}

func TestRecordRoundTripThroughColumns(t *testing.T) {
	rec := &StudentRecord{
		MatricNumber: "X1",
		Name:         "Ada",
		Department:   "Computing",
		CurrentGPA:   "4.20",
		CGPA:         "4.20",
		History:      History{semester("100", "First", course("A", 72, 3))},
	}
	cols, err := RecordColumns(rec)
	require.NoError(t, err)

	got, err := RecordFromRow("X1", Row{Columns: cols, Version: 3})
	require.NoError(t, err)
	assert.Equal(t, rec.Name, got.Name)
	assert.Equal(t, rec.CGPA, got.CGPA)
	assert.Equal(t, int64(3), got.Version)
	require.Len(t, got.History, 1)
	assert.Equal(t, "A", got.History[0].Courses[0].Grade)
}
