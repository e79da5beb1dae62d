package academic

import (
	"fmt"
	"sort"
	"time"
)

// Snapshot describes one retained past state of a student's history.
type Snapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	SummaryAction string    `json:"summaryAction"`
	SemesterCount int       `json:"semesterCount"`
}

// SummaryAction describes a history by its most recently merged semester.
func SummaryAction(h History) string {
	last, ok := h.Last()
	if !ok {
		return "Cleared history"
	}
	return fmt.Sprintf("Uploaded %s Lvl %s Sem", last.Level, last.Name)
}

// Snapshots turns retained history versions into snapshot summaries, newest
// first and at most max entries. Versions that do not decode are skipped.
func Snapshots(versions []Version, max int) []Snapshot {
	ordered := make([]Version, len(versions))
	copy(ordered, versions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].WrittenAt.After(ordered[j].WrittenAt)
	})

	out := make([]Snapshot, 0, len(ordered))
	for _, v := range ordered {
		if max > 0 && len(out) == max {
			break
		}
		h, err := DecodeHistory(v.Value)
		if err != nil {
			continue
		}
		out = append(out, Snapshot{
			Timestamp:     v.WrittenAt,
			SummaryAction: SummaryAction(h),
			SemesterCount: len(h),
		})
	}
	return out
}
