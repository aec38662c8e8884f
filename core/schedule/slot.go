// Package schedule parses weekly class slots such as "Monday 08:00-10:00" and detects overlaps.
package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrMalformed = errors.New(`schedule must look like "Monday 08:00-10:00"`)

	days = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
)

// Slot is a weekly time range; Start and End are minutes since midnight.
type Slot struct {
	Day   string // lowercase weekday
	Start int
	End   int
}

func dayIndex(day string) int {
	for i, d := range days {
		if d == day {
			return i
		}
	}
	return -1
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// Parse reads a "Day HH:MM-HH:MM" string. The day is case-insensitive and a single space
// separates it from the time range, which must end after it starts.
func Parse(s string) (Slot, error) {
	parts := strings.Split(s, " ")
	if len(parts) != 2 {
		return Slot{}, ErrMalformed
	}

	day := strings.ToLower(parts[0])
	if dayIndex(day) < 0 {
		return Slot{}, errors.Wrapf(ErrMalformed, "unknown day %q", parts[0])
	}

	bounds := strings.Split(parts[1], "-")
	if len(bounds) != 2 {
		return Slot{}, ErrMalformed
	}
	start, ok := parseClock(bounds[0])
	if !ok {
		return Slot{}, ErrMalformed
	}
	end, ok := parseClock(bounds[1])
	if !ok {
		return Slot{}, ErrMalformed
	}
	if start >= end {
		return Slot{}, errors.Wrap(ErrMalformed, "end must be after start")
	}
	return Slot{Day: day, Start: start, End: end}, nil
}

// IsValid reports whether s parses.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Overlaps reports whether a and b share any minute of the same day.
// Back-to-back slots do not overlap.
func Overlaps(a, b Slot) bool {
	return strings.EqualFold(a.Day, b.Day) && a.Start < b.End && b.Start < a.End
}

// DayName returns the capitalized weekday of the slot.
func (s Slot) DayName() string {
	if s.Day == "" {
		return ""
	}
	return strings.ToUpper(s.Day[:1]) + s.Day[1:]
}

// Clock formats minutes since midnight as "HH:MM".
func Clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// String formats the slot back to "Day HH:MM-HH:MM".
func (s Slot) String() string {
	return s.DayName() + " " + Clock(s.Start) + "-" + Clock(s.End)
}

// Sort orders slots by weekday then start time.
func Sort(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		di, dj := dayIndex(strings.ToLower(slots[i].Day)), dayIndex(strings.ToLower(slots[j].Day))
		if di != dj {
			return di < dj
		}
		return slots[i].Start < slots[j].Start
	})
}
