package academic

import (
	"encoding/json"
	"strings"

	"github.com/KingMavin/UniSemi/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACADEMIC RECORD MODEL
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultLevel is used when a submission does not name a level.
	DefaultLevel = "100"

	// DefaultSemester is used when a submission does not name a semester.
	DefaultSemester = "First"

	// ZeroGPA is the value reported when there are no units to average over.
	ZeroGPA = "0.00"
)

// Course is one graded course within a semester.
type Course struct {
	Code  string  `json:"courseCode"`
	Score Numeric `json:"score"`
	Unit  Numeric `json:"unit"`
	Grade string  `json:"grade,omitempty"`
}

// Semester is one academic term. Level and Name together form its key.
type Semester struct {
	Level   string   `json:"level"`
	Name    string   `json:"semester"`
	Courses []Course `json:"courses"`
	GPA     string   `json:"gpa,omitempty"`
}

// Key returns the semester key.
func (s Semester) Key() SemesterKey {
	return SemesterKey{Level: s.Level, Semester: s.Name}
}

// SemesterKey identifies a semester within a history.
type SemesterKey struct {
	Level    string
	Semester string
}

// History is the ordered list of semesters of one student.
// Insertion order is kept for display only.
type History []Semester

// CourseCount returns the number of courses across all semesters.
func (h History) CourseCount() int {
	n := 0
	for _, s := range h {
		n += len(s.Courses)
	}
	return n
}

// Last returns the most recently merged semester.
func (h History) Last() (Semester, bool) {
	if len(h) == 0 {
		return Semester{}, false
	}
	return h[len(h)-1], true
}

// EncodeHistory serializes a history into the stored blob format.
func EncodeHistory(h History) (string, error) {
	if h == nil {
		h = History{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeHistory parses a stored history blob. Empty input is an empty history.
func DecodeHistory(blob string) (History, error) {
	if strings.TrimSpace(blob) == "" {
		return History{}, nil
	}
	var h History
	if err := json.Unmarshal([]byte(blob), &h); err != nil {
		return nil, shared.WrapError("record", "DecodeHistory", shared.ErrHistoryCorrupt, shared.ErrHistoryCorrupt.Message, err)
	}
	if h == nil {
		h = History{}
	}
	return h, nil
}

// StudentRecord is the full academic record of one student.
type StudentRecord struct {
	MatricNumber string  `json:"matricNumber"`
	Name         string  `json:"name"`
	Department   string  `json:"department"`
	CurrentGPA   string  `json:"gpa"`
	CGPA         string  `json:"cgpa"`
	History      History `json:"academicHistory"`
	Version      int64   `json:"-"`
}

// StudentSummary is the bulk listing projection of a record.
type StudentSummary struct {
	MatricNumber string `json:"matricNumber"`
	Name         string `json:"name"`
	Department   string `json:"department"`
	CurrentGPA   string `json:"gpa"`
	CGPA         string `json:"cgpa"`
}

// SemesterInput is a caller submission for one semester.
type SemesterInput struct {
	Level    string
	Semester string
	Courses  []Course
}

// Normalize fills in the default level and semester names.
func (in SemesterInput) Normalize() SemesterInput {
	in.Level = strings.TrimSpace(in.Level)
	in.Semester = strings.TrimSpace(in.Semester)
	if in.Level == "" {
		in.Level = DefaultLevel
	}
	if in.Semester == "" {
		in.Semester = DefaultSemester
	}
	return in
}

// ══════════════════════════════════════════════════════════════════════════════
// BUILT-IN RECORD
// ══════════════════════════════════════════════════════════════════════════════

// SeedMatric is the reserved identifier served without a store round trip.
// Monitoring uses it as a liveness probe.
const SeedMatric = "SEED001"

// ErrSeedReserved rejects writes to the built-in record.
var ErrSeedReserved = shared.NewDomainError("record", "Save", shared.ErrInvalidInput, "matric number "+SeedMatric+" is reserved")

// IsSeed reports whether matric names the built-in record.
func IsSeed(matric string) bool {
	return matric == SeedMatric
}

// SeedRecord returns the static built-in record.
func SeedRecord() *StudentRecord {
	return &StudentRecord{
		MatricNumber: SeedMatric,
		Name:         "System Check",
		CurrentGPA:   "5.00",
		CGPA:         "5.00",
		History:      History{},
	}
}
