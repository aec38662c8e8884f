package schedule

// Assignment is a schedule string attached to a class.
type Assignment struct {
	ID       string
	Schedule string
}

// HasConflict reports whether candidate overlaps any of existing, skipping the assignment with excludeID.
// Unparsable schedules never conflict.
func HasConflict(candidate string, existing []Assignment, excludeID string) bool {
	cand, err := Parse(candidate)
	if err != nil {
		return false
	}
	for _, a := range existing {
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		slot, err := Parse(a.Schedule)
		if err != nil {
			continue
		}
		if Overlaps(cand, slot) {
			return true
		}
	}
	return false
}
