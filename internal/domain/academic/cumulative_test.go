package academic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCGPA_Empty(t *testing.T) {
	assert.Equal(t, "0.00", CGPA(nil))
	assert.Equal(t, "0.00", CGPA(History{{Level: "100", Name: "First"}}))
}

func TestCGPA_AcrossSemesters(t *testing.T) {
	h := Merge(nil, semester("100", "First", course("A", 72, 3), course("B", 55, 2)))
	h = Merge(h, semester("100", "Second", course("C", 40, 3)))

	assert.Equal(t, "2.63", CGPA(h))
}

func TestCGPA_IgnoresStoredGPAAndGrade(t *testing.T) {
	h := History{{
		Level:   "100",
		Name:    "First",
		GPA:     "5.00",
		Courses: []Course{{Code: "A", Score: Num(30), Unit: Num(2), Grade: "A"}},
	}}
	assert.Equal(t, "0.00", CGPA(h))
}

func TestCGPA_IndependentOfGrouping(t *testing.T) {
	courses := []Course{
		course("A", 72, 3),
		course("B", 55, 2),
		course("C", 40, 3),
		course("D", 66, 1),
	}

	oneSemester := History{{Level: "100", Name: "First", Courses: courses}}
	split := History{
		{Level: "100", Name: "First", Courses: courses[:1]},
		{Level: "100", Name: "Second", Courses: courses[1:3]},
		{Level: "200", Name: "First", Courses: courses[3:]},
	}

	assert.Equal(t, CGPA(oneSemester), CGPA(split))
}

func TestCGPA_SkipsUnparseableCourses(t *testing.T) {
	h := History{{
		Level: "100",
		Name:  "First",
		Courses: []Course{
			course("A", 80, 2),
			{Code: "B", Score: Text("x"), Unit: Num(3)},
			{Code: "C", Score: Num(40), Unit: Text("?")},
			{Code: "D", Score: Num(40), Unit: Num(1.5)},
		},
	}}
	assert.Equal(t, "5.00", CGPA(h))
}

func TestCGPA_AbsentFieldsUseDefaults(t *testing.T) {
	h := History{{
		Level: "100",
		Name:  "First",
		Courses: []Course{
			{Code: "A", Score: Num(80)},
			{Code: "B", Unit: Num(1)},
		},
	}}
	// (5*3 + 0*1) / 4
	assert.Equal(t, "3.75", CGPA(h))
}

func TestInProcessCalculator(t *testing.T) {
	h := History{semester("100", "First", course("A", 60, 2))}
	got, err := InProcessCalculator{}.CGPA(context.Background(), "X1", h)
	require.NoError(t, err)
	assert.Equal(t, "4.00", got)
}
