package grade

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type Grade struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	ClassID    string    `json:"class_id"`
	Attendance *float64  `json:"attendance"`
	Midterm    *float64  `json:"midterm"`
	Final      *float64  `json:"final"`
	Total      *float64  `json:"total"`
	Letter     string    `json:"letter"`
	Locked     bool      `json:"locked"`
	LockedAt   time.Time `json:"locked_at,omitempty"` // UTC
	CreatedAt  time.Time `json:"created_at"`          // UTC
	UpdatedAt  time.Time `json:"updated_at"`          // UTC

	// read-only, joined
	StudentName string `json:"student_name,omitempty"`
	StudentCode string `json:"student_code,omitempty"`
}

// IsComplete reports whether all three sub-scores were entered.
func (g Grade) IsComplete() bool {
	return g.Attendance != nil && g.Midterm != nil && g.Final != nil
}

// Recompute derives Total and Letter from the sub-scores.
// An incomplete grade has neither.
func (g *Grade) Recompute() {
	if !g.IsComplete() {
		g.Total, g.Letter = nil, ""
		return
	}
	total := ComputeTotal(*g.Attendance, *g.Midterm, *g.Final)
	g.Total = &total
	g.Letter = LetterFor(total)
}

// Apply sets the sub-scores of an unlocked grade.
func (g *Grade) Apply(s Scores) error {
	if g.Locked {
		return ErrGradeLocked
	}
	g.Attendance = floatPtr(*s.Attendance)
	g.Midterm = floatPtr(*s.Midterm)
	g.Final = floatPtr(*s.Final)
	g.Recompute()
	return nil
}

// Lock freezes a complete grade.
func (g *Grade) Lock(now time.Time) error {
	if g.Locked {
		return nil
	}
	if !g.IsComplete() {
		return ErrIncomplete
	}
	g.Recompute()
	g.Locked = true
	g.LockedAt = now.UTC()
	return nil
}

func floatPtr(f float64) *float64 { return &f }

// Scores are the sub-scores entered for a Grade.
type Scores struct {
	Attendance *float64 `json:"attendance" validate:"required,min=0,max=10"`
	Midterm    *float64 `json:"midterm" validate:"required,min=0,max=10"`
	Final      *float64 `json:"final" validate:"required,min=0,max=10"`
}

func (s *Scores) Validate(validate *validator.Validate) error {
	return validate.Struct(s)
}

type Enrollment struct {
	StudentID string `json:"student_id" validate:"required"`
}

func (e *Enrollment) Validate(validate *validator.Validate) error {
	return validate.Struct(e)
}

type QueryFilter struct {
	StudentID  string
	ClassID    string
	SemesterID string
	Locked     *bool
}
