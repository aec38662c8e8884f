// Package record aggregates grades into GPAs, transcripts & reports.
package record

import (
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/grade"
)

// Classifications
const (
	Excellent = "Excellent"
	VeryGood  = "Very Good"
	Good      = "Good"
	Average   = "Average"
)

// Entry is a graded (or in-progress) class of a student's record.
type Entry struct {
	ClassID      string   `json:"class_id" db:"class_id"`
	CourseCode   string   `json:"course_code" db:"course_code"`
	CourseName   string   `json:"course_name" db:"course_name"`
	Credits      int      `json:"credits" db:"credits"`
	SemesterID   string   `json:"semester_id" db:"semester_id"`
	SemesterName string   `json:"semester_name" db:"semester_name"`
	Total        *float64 `json:"total" db:"total"`
	Letter       string   `json:"letter" db:"letter"`
	Locked       bool     `json:"locked" db:"locked"`
}

// GPA returns the credit-weighted grade point average of the lettered entries, rounded to 2 decimals,
// along with the credits it covers. Entries without a letter are ignored.
func GPA(entries []Entry) (float64, int) {
	var (
		points  float64
		credits int
	)
	for _, e := range entries {
		if !grade.IsLetter(e.Letter) || e.Credits <= 0 {
			continue
		}
		points += grade.GradePoint(e.Letter) * float64(e.Credits)
		credits += e.Credits
	}
	if credits == 0 {
		return 0, 0
	}
	return core.Round(points/float64(credits), 2), credits
}

// Classify names the standing of a GPA.
func Classify(gpa float64) string {
	switch {
	case gpa >= 3.6:
		return Excellent
	case gpa >= 3.2:
		return VeryGood
	case gpa >= 2.5:
		return Good
	default:
		return Average
	}
}
