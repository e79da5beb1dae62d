package academic

import (
	"fmt"
	"math"
	"strconv"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADING POLICY
// ══════════════════════════════════════════════════════════════════════════════

// DefaultUnit is the credit weight assumed for a course whose unit is
// missing or cannot be parsed.
const DefaultUnit = 3

// Grade band lower bounds, inclusive.
const (
	BoundA = 70
	BoundB = 60
	BoundC = 50
	BoundD = 45
)

// PointsFor maps a score to its letter grade and grade point.
func PointsFor(score float64) (string, int) {
	switch {
	case score >= BoundA:
		return "A", 5
	case score >= BoundB:
		return "B", 4
	case score >= BoundC:
		return "C", 3
	case score >= BoundD:
		return "D", 2
	default:
		return "F", 0
	}
}

// PointsForValue grades a raw course score. Absent or non-numeric scores
// grade as 0.
func PointsForValue(score Numeric) (string, int) {
	v, ok := score.Float()
	if !ok {
		v = 0
	}
	return PointsFor(v)
}

// SemesterGPA computes the weighted GPA of one semester and returns the
// courses annotated with their letter grade, in input order. Returned
// courses carry the score and unit that were actually used, so later
// recomputation sees the same numbers.
func SemesterGPA(courses []Course) (string, []Course) {
	graded := make([]Course, len(courses))
	var acc accumulator

	for i, c := range courses {
		score, ok := c.Score.Float()
		if !ok {
			score = 0
		}
		unit, ok := c.Unit.Int()
		if !ok {
			unit = DefaultUnit
		}

		letter, point := PointsFor(score)
		acc.add(point, unit)

		graded[i] = Course{
			Code:  c.Code,
			Score: Num(score),
			Unit:  Num(float64(unit)),
			Grade: letter,
		}
	}

	return acc.gpa(), graded
}

// GradeSemester runs SemesterGPA over a submission and returns the
// semester ready to be merged.
func GradeSemester(in SemesterInput) Semester {
	in = in.Normalize()
	gpa, courses := SemesterGPA(in.Courses)
	return Semester{
		Level:   in.Level,
		Name:    in.Semester,
		Courses: courses,
		GPA:     gpa,
	}
}

// accumulator sums integer grade points and units so the average can be
// rounded exactly.
type accumulator struct {
	points int64
	units  int64
}

func (a *accumulator) add(point, unit int) {
	a.points += int64(point) * int64(unit)
	a.units += int64(unit)
}

func (a accumulator) gpa() string {
	return FormatRatio(a.points, a.units)
}

// FormatRatio formats points/units with two decimals, rounding halves away
// from zero. A non-positive denominator yields ZeroGPA.
func FormatRatio(points, units int64) string {
	if units <= 0 {
		return ZeroGPA
	}
	neg := points < 0
	if neg {
		points = -points
	}
	hundredths := (points*200 + units) / (2 * units)
	s := fmt.Sprintf("%d.%02d", hundredths/100, hundredths%100)
	if neg && hundredths != 0 {
		s = "-" + s
	}
	return s
}

// FormatGPA formats a floating point GPA with two decimals, rounding halves
// away from zero.
func FormatGPA(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ZeroGPA
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', 2, 64)
}
