package academic

import "context"

// CGPA recomputes the cumulative GPA over every course of every semester.
// Stored per-semester GPAs and grades are ignored. A course with an absent
// score counts as 0 and an absent unit counts as DefaultUnit; a course whose
// score or unit is present but unparseable is skipped.
func CGPA(h History) string {
	var acc accumulator
	for _, sem := range h {
		for _, c := range sem.Courses {
			point, unit, ok := cumulativeTerms(c)
			if !ok {
				continue
			}
			acc.add(point, unit)
		}
	}
	return acc.gpa()
}

func cumulativeTerms(c Course) (point, unit int, ok bool) {
	score := 0.0
	if c.Score.IsSet() {
		if score, ok = c.Score.Float(); !ok {
			return 0, 0, false
		}
	}

	unit = DefaultUnit
	if c.Unit.IsSet() {
		if unit, ok = c.Unit.Int(); !ok {
			return 0, 0, false
		}
	}

	_, point = PointsFor(score)
	return point, unit, true
}

// Calculator computes the cumulative GPA of a history. The in-process
// implementation is the reference; other backends must produce the same
// figures.
type Calculator interface {
	CGPA(ctx context.Context, matric string, h History) (string, error)
}

// InProcessCalculator evaluates CGPA in the calling goroutine.
type InProcessCalculator struct{}

// CGPA implements Calculator.
func (InProcessCalculator) CGPA(_ context.Context, _ string, h History) (string, error) {
	return CGPA(h), nil
}
