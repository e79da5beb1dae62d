package audit

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDGenerator_LexicalOrderFollowsTime(t *testing.T) {
	clock := time.UnixMilli(1_700_000_000_000)
	gen := NewIDGenerator(func() time.Time { return clock })

	var ids []string
	for i := 0; i < 5; i++ {
		id, _ := gen.Next()
		ids = append(ids, id)
		clock = clock.Add(time.Millisecond)
	}

	assert.True(t, sort.StringsAreSorted(ids))
}

func TestIDGenerator_NeverGoesBackwards(t *testing.T) {
	clock := time.UnixMilli(2_000)
	gen := NewIDGenerator(func() time.Time { return clock })

	_, first := gen.Next()
	clock = time.UnixMilli(1_000)
	id, second := gen.Next()

	assert.Equal(t, first, second)
	assert.Contains(t, id, "000000000002000-")
}

func TestIDGenerator_UniqueWithinMillisecond(t *testing.T) {
	gen := NewIDGenerator(func() time.Time { return time.UnixMilli(42) })
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, _ := gen.Next()
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestIDGenerator_IssueOrderWithinMillisecond(t *testing.T) {
	gen := NewIDGenerator(func() time.Time { return time.UnixMilli(1_700_000_000_000) })

	prev, _ := gen.Next()
	for i := 1; i < 60; i++ {
		id, _ := gen.Next()
		require.Less(t, prev, id, "id %d sorts before its predecessor", i)
		prev = id
	}
}

func TestIDGenerator_SequenceResetsWhenClockAdvances(t *testing.T) {
	clock := time.UnixMilli(5_000)
	gen := NewIDGenerator(func() time.Time { return clock })

	first, _ := gen.Next()
	second, _ := gen.Next()
	clock = clock.Add(time.Millisecond)
	third, _ := gen.Next()

	assert.True(t, strings.HasPrefix(first, "000000000005000-000000-"))
	assert.True(t, strings.HasPrefix(second, "000000000005000-000001-"))
	assert.True(t, strings.HasPrefix(third, "000000000005001-000000-"))
}

func TestIDGenerator_ExhaustedSequenceBorrowsNextMillisecond(t *testing.T) {
	gen := NewIDGenerator(func() time.Time { return time.UnixMilli(7_000) })

	before, _ := gen.Next()
	gen.seq = idSeqLimit - 1
	after, ms := gen.Next()

	assert.Equal(t, int64(7_001), ms)
	assert.Less(t, before, after)
	assert.True(t, strings.HasPrefix(after, "000000000007001-000000-"))
}

func TestNewEntry(t *testing.T) {
	gen := NewIDGenerator(func() time.Time { return time.UnixMilli(1234) })
	e := gen.NewEntry(ActionNewStudent, "Added X1")

	assert.Equal(t, ActionNewStudent, e.Action)
	assert.Equal(t, "Added X1", e.Details)
	assert.Equal(t, int64(1234), e.TimestampMs)
	assert.Equal(t, time.UnixMilli(1234), e.Time())
}
