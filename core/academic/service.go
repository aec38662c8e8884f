package academic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/schedule"
	"github.com/trezcool/shule/core/user"
)

var (
	ErrCourseNotFound     = errors.New("course not found")
	ErrSemesterNotFound   = errors.New("semester not found")
	ErrClassNotFound      = errors.New("class not found")
	ErrCourseCodeExists   = errors.New("a course with this code already exists")
	ErrSemesterNameExists = errors.New("a semester with this name already exists")
	ErrSectionExists      = errors.New("this section already exists for the course & semester")
	ErrCourseInUse        = errors.New("course still has classes")
	ErrClassHasGrades     = errors.New("class still has grade records")
	ErrNotLecturer        = errors.New("only lecturers can be assigned to a class")
	ErrScheduleConflict   = errors.New("schedule conflicts with another class of the lecturer")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, course Course, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, filter *CourseFilter, exec ...core.DBExecutor) ([]Course, error)
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, course Course, exec ...core.DBExecutor) (Course, error)
		// DeleteCourse returns ErrCourseInUse when classes still reference the course.
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateSemester(ctx context.Context, sem Semester, exec ...core.DBExecutor) (Semester, error)
		QuerySemesters(ctx context.Context, exec ...core.DBExecutor) ([]Semester, error)
		GetSemester(ctx context.Context, id string, exec ...core.DBExecutor) (Semester, error)

		CreateClass(ctx context.Context, class Class, exec ...core.DBExecutor) (Class, error)
		QueryClasses(ctx context.Context, filter *ClassFilter, exec ...core.DBExecutor) ([]Class, error)
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		UpdateClass(ctx context.Context, class Class, exec ...core.DBExecutor) (Class, error)
		// DeleteClass returns ErrClassHasGrades when students are still enrolled in the class.
		DeleteClass(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// UserGetter finds the lecturers assigned to classes.
	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		CreateCourse(ctx context.Context, nc NewCourse) (Course, error)
		QueryCourses(ctx context.Context, filter *CourseFilter) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		UpdateCourse(ctx context.Context, course Course, uc UpdateCourse) (Course, error)
		DeleteCourse(ctx context.Context, id string) error

		CreateSemester(ctx context.Context, ns NewSemester) (Semester, error)
		QuerySemesters(ctx context.Context) ([]Semester, error)
		GetSemester(ctx context.Context, id string) (Semester, error)

		// CreateClass opens a class; its lecturer & schedule are checked like in AssignLecturer.
		CreateClass(ctx context.Context, nc NewClass) (Class, error)
		// AssignLecturer sets the lecturer & schedule of a class, refusing slots that overlap
		// with another class of the lecturer in the same semester.
		AssignLecturer(ctx context.Context, classID string, ac AssignClass) (Class, error)
		UpdateClass(ctx context.Context, class Class, uc UpdateClass) (Class, error)
		QueryClasses(ctx context.Context, filter *ClassFilter) ([]Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		DeleteClass(ctx context.Context, id string) error
		// LecturerTimetable lists the scheduled classes of a lecturer by weekday & start time.
		LecturerTimetable(ctx context.Context, lecturerID, semesterID string) ([]TimetableEntry, error)
	}

	service struct {
		db      core.DB
		repo    Repository
		users   UserGetter
		logger  core.Logger
		nowFunc func() time.Time
	}
)

func NewService(db core.DB, repo Repository, users UserGetter, logger core.Logger) Service {
	return &service{db: db, repo: repo, users: users, logger: logger, nowFunc: time.Now}
}

func fieldError(err error, field string) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

func (svc *service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	now := svc.nowFunc().UTC()
	course, err := svc.repo.CreateCourse(ctx, Course{
		Code:        strings.ToUpper(nc.Code),
		Name:        nc.Name,
		Credits:     nc.Credits,
		Description: nc.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err == ErrCourseCodeExists {
		return Course{}, fieldError(err, "code")
	}
	return course, err
}

func (svc *service) QueryCourses(ctx context.Context, filter *CourseFilter) ([]Course, error) {
	if filter != nil {
		filter.Search = core.CleanString(filter.Search)
	}
	return svc.repo.QueryCourses(ctx, filter)
}

func (svc *service) GetCourse(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) UpdateCourse(ctx context.Context, course Course, uc UpdateCourse) (Course, error) {
	course.Code = strings.ToUpper(uc.Code)
	course.Name = uc.Name
	course.Credits = uc.Credits
	if uc.Description != nil {
		course.Description = *uc.Description
	}
	course.UpdatedAt = svc.nowFunc().UTC()

	course, err := svc.repo.UpdateCourse(ctx, course)
	if err == ErrCourseCodeExists {
		return Course{}, fieldError(err, "code")
	}
	return course, err
}

func (svc *service) DeleteCourse(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}

func (svc *service) CreateSemester(ctx context.Context, ns NewSemester) (Semester, error) {
	sem, err := svc.repo.CreateSemester(ctx, Semester{
		Name:      ns.Name,
		StartDate: ns.StartDate.UTC(),
		EndDate:   ns.EndDate.UTC(),
		CreatedAt: svc.nowFunc().UTC(),
	})
	if err == ErrSemesterNameExists {
		return Semester{}, fieldError(err, "name")
	}
	return sem, err
}

func (svc *service) QuerySemesters(ctx context.Context) ([]Semester, error) {
	return svc.repo.QuerySemesters(ctx)
}

func (svc *service) GetSemester(ctx context.Context, id string) (Semester, error) {
	return svc.repo.GetSemester(ctx, id)
}

// checkLecturer makes sure lecturerID is an active lecturer.
func (svc *service) checkLecturer(ctx context.Context, lecturerID string) (user.User, error) {
	lecturer, err := svc.users.GetByID(ctx, lecturerID)
	if err != nil {
		if err == user.ErrNotFound {
			return user.User{}, fieldError(ErrNotLecturer, "lecturer_id")
		}
		return user.User{}, err
	}
	if !lecturer.IsLecturer() || !lecturer.IsActive {
		return user.User{}, fieldError(ErrNotLecturer, "lecturer_id")
	}
	return lecturer, nil
}

// checkSchedule refuses sched when it overlaps another class of the lecturer in the semester.
func (svc *service) checkSchedule(ctx context.Context, exec core.DBExecutor, lecturerID, semesterID, sched, classID string) error {
	if lecturerID == "" || sched == "" {
		return nil
	}
	classes, err := svc.repo.QueryClasses(ctx, &ClassFilter{LecturerID: lecturerID, SemesterID: semesterID}, exec)
	if err != nil {
		return err
	}
	existing := make([]schedule.Assignment, 0, len(classes))
	for _, c := range classes {
		existing = append(existing, c.Assignment())
	}
	if schedule.HasConflict(sched, existing, classID) {
		svc.logger.Debug(fmt.Sprintf("schedule %q conflicts with the classes of lecturer %q", sched, lecturerID))
		return fieldError(ErrScheduleConflict, "schedule")
	}
	return nil
}

func (svc *service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	if _, err := svc.repo.GetCourse(ctx, nc.CourseID); err != nil {
		if err == ErrCourseNotFound {
			return Class{}, fieldError(err, "course_id")
		}
		return Class{}, err
	}
	if _, err := svc.repo.GetSemester(ctx, nc.SemesterID); err != nil {
		if err == ErrSemesterNotFound {
			return Class{}, fieldError(err, "semester_id")
		}
		return Class{}, err
	}
	if nc.LecturerID != "" {
		if _, err := svc.checkLecturer(ctx, nc.LecturerID); err != nil {
			return Class{}, err
		}
	}

	now := svc.nowFunc().UTC()
	class := Class{
		CourseID:   nc.CourseID,
		SemesterID: nc.SemesterID,
		LecturerID: nc.LecturerID,
		Section:    nc.Section,
		Schedule:   nc.Schedule,
		Room:       nc.Room,
		Capacity:   nc.Capacity,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkSchedule(ctx, tx, class.LecturerID, class.SemesterID, class.Schedule, ""); err != nil {
			return err
		}
		created, err := svc.repo.CreateClass(ctx, class, tx)
		if err != nil {
			return err
		}
		class = created
		return nil
	})
	if err != nil {
		if err == ErrSectionExists {
			return Class{}, fieldError(err, "section")
		}
		return Class{}, err
	}
	return svc.repo.GetClass(ctx, class.ID)
}

func (svc *service) AssignLecturer(ctx context.Context, classID string, ac AssignClass) (Class, error) {
	class, err := svc.repo.GetClass(ctx, classID)
	if err != nil {
		return Class{}, err
	}
	if _, err = svc.checkLecturer(ctx, ac.LecturerID); err != nil {
		return Class{}, err
	}

	class.LecturerID = ac.LecturerID
	class.Schedule = ac.Schedule
	class.UpdatedAt = svc.nowFunc().UTC()
	err = core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkSchedule(ctx, tx, class.LecturerID, class.SemesterID, class.Schedule, class.ID); err != nil {
			return err
		}
		_, err := svc.repo.UpdateClass(ctx, class, tx)
		return err
	})
	if err != nil {
		return Class{}, err
	}
	return svc.repo.GetClass(ctx, class.ID)
}

func (svc *service) UpdateClass(ctx context.Context, class Class, uc UpdateClass) (Class, error) {
	class.Section = uc.Section
	class.Room = uc.Room
	if uc.Capacity != nil {
		class.Capacity = *uc.Capacity
	}
	class.UpdatedAt = svc.nowFunc().UTC()

	if _, err := svc.repo.UpdateClass(ctx, class); err != nil {
		if err == ErrSectionExists {
			return Class{}, fieldError(err, "section")
		}
		return Class{}, err
	}
	return svc.repo.GetClass(ctx, class.ID)
}

func (svc *service) QueryClasses(ctx context.Context, filter *ClassFilter) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, filter)
}

func (svc *service) GetClass(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *service) DeleteClass(ctx context.Context, id string) error {
	return svc.repo.DeleteClass(ctx, id)
}

func (svc *service) LecturerTimetable(ctx context.Context, lecturerID, semesterID string) ([]TimetableEntry, error) {
	classes, err := svc.repo.QueryClasses(ctx, &ClassFilter{LecturerID: lecturerID, SemesterID: semesterID})
	if err != nil {
		return nil, err
	}

	slots := make([]schedule.Slot, 0, len(classes))
	bySlot := make(map[schedule.Slot][]Class, len(classes))
	for _, c := range classes {
		slot, err := schedule.Parse(c.Schedule)
		if err != nil {
			continue
		}
		if _, ok := bySlot[slot]; !ok {
			slots = append(slots, slot)
		}
		bySlot[slot] = append(bySlot[slot], c)
	}
	schedule.Sort(slots)

	entries := make([]TimetableEntry, 0, len(classes))
	for _, slot := range slots {
		for _, c := range bySlot[slot] {
			entries = append(entries, TimetableEntry{
				Class: c,
				Slot:  slot,
				Day:   slot.DayName(),
				Start: schedule.Clock(slot.Start),
				End:   schedule.Clock(slot.End),
			})
		}
	}
	return entries, nil
}
