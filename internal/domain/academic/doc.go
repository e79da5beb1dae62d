// Package academic contains the domain model of a student's academic record.
//
// The package defines:
//
//   - The record model: StudentRecord, History, Semester, Course
//   - The grading policy: PointsFor, SemesterGPA
//   - The semester merge: Merge
//   - The cumulative aggregator: CGPA and the Calculator interface
//   - Snapshot summaries of retained history versions
//   - The RecordStore contract implemented in infrastructure/persistence
//
// # Grading
//
// Scores map onto five bands:
//
//	score >= 70  A  5
//	score >= 60  B  4
//	score >= 50  C  3
//	score >= 45  D  2
//	otherwise    F  0
//
// A semester GPA is Σ(point×unit)/Σunit with two decimals. All sums are kept
// as integers, so 21/8 renders as "2.63" and never drifts.
//
// # Merging
//
// A history holds at most one semester per (level, semester) key. Merge
// drops any existing semester with the submitted key and appends the new one:
//
//	graded := academic.GradeSemester(input)
//	history = academic.Merge(history, graded)
//	cgpa := academic.CGPA(history)
//
// The history is never sorted. The current GPA of a record is the GPA of the
// last submitted semester.
//
// # Storage layout
//
// A record is stored as one row keyed by matric number with the columns
// info:name, info:dept, info:gpa, info:cgpa and academic:history. The history
// column is versioned and the store keeps SnapshotRetention past values.
package academic
