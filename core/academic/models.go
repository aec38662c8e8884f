package academic

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/schedule"
)

type Course struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Credits     int       `json:"credits"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type NewCourse struct {
	Code        string `json:"code" validate:"required,max=20,alphanum_"`
	Name        string `json:"name" validate:"required,notblank,max=255"`
	Credits     int    `json:"credits" validate:"required,min=1,max=10"`
	Description string `json:"description"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Code = core.CleanString(nc.Code)
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Code        string  `json:"code" validate:"omitempty,max=20,alphanum_"`
	Name        string  `json:"name" validate:"omitempty,max=255"`
	Credits     int     `json:"credits" validate:"omitempty,min=1,max=10"`
	Description *string `json:"description"`
}

// Validate fills blank fields with the ones of orig, then validates.
func (uc *UpdateCourse) Validate(orig Course, validate *validator.Validate) error {
	if code := core.CleanString(uc.Code); code != "" {
		uc.Code = code
	} else {
		uc.Code = orig.Code
	}
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if uc.Credits == 0 {
		uc.Credits = orig.Credits
	}
	if uc.Description == nil {
		uc.Description = &orig.Description
	} else {
		desc := core.CleanString(*uc.Description)
		uc.Description = &desc
	}
	return validate.Struct(uc)
}

type Semester struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"` // UTC
	EndDate   time.Time `json:"end_date"`   // UTC
	CreatedAt time.Time `json:"created_at"` // UTC
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsOpen reports whether now falls on a day between StartDate and EndDate, both included.
func (s Semester) IsOpen(now time.Time) bool {
	day := truncateDay(now)
	return !day.Before(truncateDay(s.StartDate)) && !day.After(truncateDay(s.EndDate))
}

type NewSemester struct {
	Name      string    `json:"name" validate:"required,notblank,max=100"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
}

func (ns *NewSemester) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.StartDate = truncateDay(ns.StartDate)
	ns.EndDate = truncateDay(ns.EndDate)
	return validate.Struct(ns)
}

type Class struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"course_id"`
	SemesterID string    `json:"semester_id"`
	LecturerID string    `json:"lecturer_id,omitempty"`
	Section    string    `json:"section"`
	Schedule   string    `json:"schedule"`
	Room       string    `json:"room"`
	Capacity   int       `json:"capacity"` // 0: unlimited
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC

	// read-only, joined
	CourseCode   string `json:"course_code,omitempty"`
	CourseName   string `json:"course_name,omitempty"`
	Credits      int    `json:"credits,omitempty"`
	SemesterName string `json:"semester_name,omitempty"`
	LecturerName string `json:"lecturer_name,omitempty"`
}

// Assignment returns the schedule of the class as seen by the conflict checker.
func (c Class) Assignment() schedule.Assignment {
	return schedule.Assignment{ID: c.ID, Schedule: c.Schedule}
}

type NewClass struct {
	CourseID   string `json:"course_id" validate:"required"`
	SemesterID string `json:"semester_id" validate:"required"`
	LecturerID string `json:"lecturer_id"`
	Section    string `json:"section" validate:"required,max=20"`
	Schedule   string `json:"schedule" validate:"omitempty,schedule"`
	Room       string `json:"room" validate:"max=50"`
	Capacity   int    `json:"capacity" validate:"min=0"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.CourseID = core.CleanString(nc.CourseID)
	nc.SemesterID = core.CleanString(nc.SemesterID)
	nc.LecturerID = core.CleanString(nc.LecturerID)
	nc.Section = core.CleanString(nc.Section)
	nc.Schedule = core.CleanString(nc.Schedule)
	nc.Room = core.CleanString(nc.Room)
	return validate.Struct(nc)
}

// UpdateClass defines what information may be provided to modify an existing Class.
type UpdateClass struct {
	Section  string `json:"section" validate:"omitempty,max=20"`
	Room     string `json:"room" validate:"max=50"`
	Capacity *int   `json:"capacity" validate:"omitempty,min=0"`
}

// Validate fills blank fields with the ones of orig, then validates.
func (uc *UpdateClass) Validate(orig Class, validate *validator.Validate) error {
	if section := core.CleanString(uc.Section); section != "" {
		uc.Section = section
	} else {
		uc.Section = orig.Section
	}
	if room := core.CleanString(uc.Room); room != "" {
		uc.Room = room
	} else {
		uc.Room = orig.Room
	}
	if uc.Capacity == nil {
		uc.Capacity = &orig.Capacity
	}
	return validate.Struct(uc)
}

// AssignClass sets the lecturer and weekly slot of a Class.
type AssignClass struct {
	LecturerID string `json:"lecturer_id" validate:"required"`
	Schedule   string `json:"schedule" validate:"required,schedule"`
}

func (ac *AssignClass) Validate(validate *validator.Validate) error {
	ac.LecturerID = core.CleanString(ac.LecturerID)
	ac.Schedule = core.CleanString(ac.Schedule)
	return validate.Struct(ac)
}

type ClassFilter struct {
	CourseID   string `query:"course_id"`
	SemesterID string `query:"semester_id"`
	LecturerID string `query:"lecturer_id"`
}

type CourseFilter struct {
	Search string `query:"search"`
}

// TimetableEntry is a Class along with its parsed slot.
type TimetableEntry struct {
	Class Class         `json:"class"`
	Slot  schedule.Slot `json:"-"`
	Day   string        `json:"day"`
	Start string        `json:"start"`
	End   string        `json:"end"`
}
