package academic

// Merge replaces every semester of h that shares sem's key and appends sem
// as the last entry. The input history is not modified. Semesters are never
// reordered, so the last entry is always the most recently submitted one.
func Merge(h History, sem Semester) History {
	key := sem.Key()
	merged := make(History, 0, len(h)+1)
	for _, existing := range h {
		if existing.Key() == key {
			continue
		}
		merged = append(merged, existing)
	}
	return append(merged, sem)
}
