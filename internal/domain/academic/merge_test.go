package academic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func semester(level, name string, courses ...Course) Semester {
	return GradeSemester(SemesterInput{Level: level, Semester: name, Courses: courses})
}

func TestMerge_AppendsNewKey(t *testing.T) {
	h := History{semester("100", "First", course("A", 70, 3))}
	merged := Merge(h, semester("100", "Second", course("B", 50, 2)))

	require.Len(t, merged, 2)
	assert.Equal(t, SemesterKey{"100", "First"}, merged[0].Key())
	assert.Equal(t, SemesterKey{"100", "Second"}, merged[1].Key())
}

func TestMerge_SameKeyTwiceKeepsSecond(t *testing.T) {
	first := semester("200", "First", course("A", 40, 3))
	second := semester("200", "First", course("A", 90, 3))

	h := Merge(Merge(nil, first), second)
	require.Len(t, h, 1)
	assert.Equal(t, "5.00", h[0].GPA)

	again := Merge(h, second)
	assert.Equal(t, h, again)
}

func TestMerge_PreservesOtherSemesters(t *testing.T) {
	s1 := semester("100", "First", course("A", 70, 3))
	s2 := semester("100", "Second", course("B", 48, 2))
	s3 := semester("200", "First", course("C", 61, 4))
	h := History{s1, s2, s3}

	merged := Merge(h, semester("100", "Second", course("B", 75, 2)))

	require.Len(t, merged, 3)
	assert.Equal(t, s1, merged[0])
	assert.Equal(t, s3, merged[1])
	assert.Equal(t, SemesterKey{"100", "Second"}, merged[2].Key())
	assert.Equal(t, "A", merged[2].Courses[0].Grade)
}

func TestMerge_DoesNotSortOrMutateInput(t *testing.T) {
	h := History{semester("300", "First"), semester("200", "Second")}
	before := append(History(nil), h...)

	merged := Merge(h, semester("100", "First"))

	assert.Equal(t, before, h)
	assert.Equal(t, "300", merged[0].Level)
	assert.Equal(t, "200", merged[1].Level)
	assert.Equal(t, "100", merged[2].Level)
}

func TestMerge_RemovesDuplicateKeysFromLegacyHistory(t *testing.T) {
	h := History{
		{Level: "100", Name: "First"},
		{Level: "100", Name: "First"},
		{Level: "200", Name: "First"},
	}
	merged := Merge(h, Semester{Level: "100", Name: "First"})
	require.Len(t, merged, 2)
	assert.Equal(t, "200", merged[0].Level)
}
