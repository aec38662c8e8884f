package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
)

const classSelect = `
SELECT c.id, c.course_id, c.semester_id, c.lecturer_id, c.section, c.schedule, c.room, c.capacity,
       c.created_at, c.updated_at,
       co.code AS course_code, co.name AS course_name, co.credits AS credits,
       s.name AS semester_name, u.name AS lecturer_name
FROM classes c
JOIN courses co ON co.id = c.course_id
JOIN semesters s ON s.id = c.semester_id
LEFT JOIN users u ON u.id = c.lecturer_id`

type courseRow struct {
	ID          string    `db:"id"`
	Code        string    `db:"code"`
	Name        string    `db:"name"`
	Credits     int       `db:"credits"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row courseRow) toCourse() academic.Course {
	return academic.Course{
		ID:          row.ID,
		Code:        row.Code,
		Name:        row.Name,
		Credits:     row.Credits,
		Description: row.Description,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

type semesterRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	CreatedAt time.Time `db:"created_at"`
}

func (row semesterRow) toSemester() academic.Semester {
	return academic.Semester{
		ID:        row.ID,
		Name:      row.Name,
		StartDate: row.StartDate.UTC(),
		EndDate:   row.EndDate.UTC(),
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type classRow struct {
	ID           string      `db:"id"`
	CourseID     string      `db:"course_id"`
	SemesterID   string      `db:"semester_id"`
	LecturerID   null.String `db:"lecturer_id"`
	Section      string      `db:"section"`
	Schedule     string      `db:"schedule"`
	Room         string      `db:"room"`
	Capacity     int         `db:"capacity"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	CourseCode   string      `db:"course_code"`
	CourseName   string      `db:"course_name"`
	Credits      int         `db:"credits"`
	SemesterName string      `db:"semester_name"`
	LecturerName null.String `db:"lecturer_name"`
}

func (row classRow) toClass() academic.Class {
	return academic.Class{
		ID:           row.ID,
		CourseID:     row.CourseID,
		SemesterID:   row.SemesterID,
		LecturerID:   row.LecturerID.String,
		Section:      row.Section,
		Schedule:     row.Schedule,
		Room:         row.Room,
		Capacity:     row.Capacity,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		CourseCode:   row.CourseCode,
		CourseName:   row.CourseName,
		Credits:      row.Credits,
		SemesterName: row.SemesterName,
		LecturerName: row.LecturerName.String,
	}
}

type academicRepository struct {
	baseRepository
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(exec core.DBExecutor) *academicRepository {
	return &academicRepository{baseRepository{exec: exec}}
}

func (repo academicRepository) CreateCourse(ctx context.Context, course academic.Course, exec ...core.DBExecutor) (academic.Course, error) {
	exe := repo.getExec(exec)
	course.ID = uuid.New().String()

	_, err := exe.ExecContext(ctx, exe.Rebind(`
		INSERT INTO courses (id, code, name, credits, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		course.ID, course.Code, course.Name, course.Credits, course.Description,
		course.CreatedAt.UTC(), course.UpdatedAt.UTC(),
	)
	if err != nil {
		if uniqueViolation(err, "code") {
			return academic.Course{}, academic.ErrCourseCodeExists
		}
		return academic.Course{}, errors.Wrap(err, "inserting course")
	}
	return course, nil
}

func (repo academicRepository) QueryCourses(ctx context.Context, filter *academic.CourseFilter, exec ...core.DBExecutor) ([]academic.Course, error) {
	exe := repo.getExec(exec)

	q := "SELECT id, code, name, credits, description, created_at, updated_at FROM courses"
	var args []interface{}
	if filter != nil && filter.Search != "" {
		val := "%" + strings.ToLower(filter.Search) + "%"
		q += " WHERE LOWER(code) LIKE ? OR LOWER(name) LIKE ?"
		args = append(args, val, val)
	}
	q += " ORDER BY code ASC"

	var rows []courseRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]academic.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}

func (repo academicRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return academic.Course{}, academic.ErrCourseNotFound
	}
	exe := repo.getExec(exec)

	var row courseRow
	err := exe.GetContext(ctx, &row, exe.Rebind(`
		SELECT id, code, name, credits, description, created_at, updated_at FROM courses WHERE id = ?`), id)
	if err != nil {
		return academic.Course{}, trapNoRowsErr(err, academic.ErrCourseNotFound, "finding course")
	}
	return row.toCourse(), nil
}

func (repo academicRepository) UpdateCourse(ctx context.Context, course academic.Course, exec ...core.DBExecutor) (academic.Course, error) {
	exe := repo.getExec(exec)

	res, err := exe.ExecContext(ctx, exe.Rebind(`
		UPDATE courses SET code = ?, name = ?, credits = ?, description = ?, updated_at = ? WHERE id = ?`),
		course.Code, course.Name, course.Credits, course.Description, course.UpdatedAt.UTC(), course.ID,
	)
	if err != nil {
		if uniqueViolation(err, "code") {
			return academic.Course{}, academic.ErrCourseCodeExists
		}
		return academic.Course{}, errors.Wrap(err, "updating course")
	}
	if err = rowsAffected(res, academic.ErrCourseNotFound, "updating course"); err != nil {
		return academic.Course{}, err
	}
	return course, nil
}

func (repo academicRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := uuid.Parse(id); err != nil {
		return academic.ErrCourseNotFound
	}
	exe := repo.getExec(exec)

	var cnt int
	if err := exe.GetContext(ctx, &cnt, exe.Rebind("SELECT COUNT(*) FROM classes WHERE course_id = ?"), id); err != nil {
		return errors.Wrap(err, "counting course classes")
	}
	if cnt > 0 {
		return academic.ErrCourseInUse
	}

	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM courses WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return rowsAffected(res, academic.ErrCourseNotFound, "deleting course")
}

func (repo academicRepository) CreateSemester(ctx context.Context, sem academic.Semester, exec ...core.DBExecutor) (academic.Semester, error) {
	exe := repo.getExec(exec)
	sem.ID = uuid.New().String()

	_, err := exe.ExecContext(ctx, exe.Rebind(`
		INSERT INTO semesters (id, name, start_date, end_date, created_at) VALUES (?, ?, ?, ?, ?)`),
		sem.ID, sem.Name, sem.StartDate.UTC(), sem.EndDate.UTC(), sem.CreatedAt.UTC(),
	)
	if err != nil {
		if uniqueViolation(err, "name") {
			return academic.Semester{}, academic.ErrSemesterNameExists
		}
		return academic.Semester{}, errors.Wrap(err, "inserting semester")
	}
	return sem, nil
}

func (repo academicRepository) QuerySemesters(ctx context.Context, exec ...core.DBExecutor) ([]academic.Semester, error) {
	exe := repo.getExec(exec)

	var rows []semesterRow
	err := exe.SelectContext(ctx, &rows, "SELECT id, name, start_date, end_date, created_at FROM semesters ORDER BY start_date DESC")
	if err != nil {
		return nil, errors.Wrap(err, "querying semesters")
	}
	sems := make([]academic.Semester, 0, len(rows))
	for _, row := range rows {
		sems = append(sems, row.toSemester())
	}
	return sems, nil
}

func (repo academicRepository) GetSemester(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Semester, error) {
	if _, err := uuid.Parse(id); err != nil {
		return academic.Semester{}, academic.ErrSemesterNotFound
	}
	exe := repo.getExec(exec)

	var row semesterRow
	err := exe.GetContext(ctx, &row, exe.Rebind(`
		SELECT id, name, start_date, end_date, created_at FROM semesters WHERE id = ?`), id)
	if err != nil {
		return academic.Semester{}, trapNoRowsErr(err, academic.ErrSemesterNotFound, "finding semester")
	}
	return row.toSemester(), nil
}

func (repo academicRepository) CreateClass(ctx context.Context, class academic.Class, exec ...core.DBExecutor) (academic.Class, error) {
	exe := repo.getExec(exec)
	class.ID = uuid.New().String()

	_, err := exe.ExecContext(ctx, exe.Rebind(`
		INSERT INTO classes (id, course_id, semester_id, lecturer_id, section, schedule, room, capacity,
		                     created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		class.ID, class.CourseID, class.SemesterID, nullString(class.LecturerID), class.Section, class.Schedule,
		class.Room, class.Capacity, class.CreatedAt.UTC(), class.UpdatedAt.UTC(),
	)
	if err != nil {
		if uniqueViolation(err, "section") {
			return academic.Class{}, academic.ErrSectionExists
		}
		return academic.Class{}, errors.Wrap(err, "inserting class")
	}
	return class, nil
}

func (repo academicRepository) QueryClasses(ctx context.Context, filter *academic.ClassFilter, exec ...core.DBExecutor) ([]academic.Class, error) {
	exe := repo.getExec(exec)

	var (
		conds []string
		args  []interface{}
	)
	if filter != nil {
		if filter.CourseID != "" {
			conds = append(conds, "c.course_id = ?")
			args = append(args, filter.CourseID)
		}
		if filter.SemesterID != "" {
			conds = append(conds, "c.semester_id = ?")
			args = append(args, filter.SemesterID)
		}
		if filter.LecturerID != "" {
			conds = append(conds, "c.lecturer_id = ?")
			args = append(args, filter.LecturerID)
		}
	}

	q := classSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY s.start_date DESC, co.code ASC, c.section ASC"

	var rows []classRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]academic.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.toClass())
	}
	return classes, nil
}

func (repo academicRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Class, error) {
	if _, err := uuid.Parse(id); err != nil {
		return academic.Class{}, academic.ErrClassNotFound
	}
	exe := repo.getExec(exec)

	var row classRow
	if err := exe.GetContext(ctx, &row, exe.Rebind(classSelect+" WHERE c.id = ?"), id); err != nil {
		return academic.Class{}, trapNoRowsErr(err, academic.ErrClassNotFound, "finding class")
	}
	return row.toClass(), nil
}

func (repo academicRepository) UpdateClass(ctx context.Context, class academic.Class, exec ...core.DBExecutor) (academic.Class, error) {
	exe := repo.getExec(exec)

	res, err := exe.ExecContext(ctx, exe.Rebind(`
		UPDATE classes
		SET lecturer_id = ?, section = ?, schedule = ?, room = ?, capacity = ?, updated_at = ?
		WHERE id = ?`),
		nullString(class.LecturerID), class.Section, class.Schedule, class.Room, class.Capacity,
		class.UpdatedAt.UTC(), class.ID,
	)
	if err != nil {
		if uniqueViolation(err, "section") {
			return academic.Class{}, academic.ErrSectionExists
		}
		return academic.Class{}, errors.Wrap(err, "updating class")
	}
	if err = rowsAffected(res, academic.ErrClassNotFound, "updating class"); err != nil {
		return academic.Class{}, err
	}
	return class, nil
}

func (repo academicRepository) DeleteClass(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := uuid.Parse(id); err != nil {
		return academic.ErrClassNotFound
	}
	exe := repo.getExec(exec)

	var cnt int
	if err := exe.GetContext(ctx, &cnt, exe.Rebind("SELECT COUNT(*) FROM grades WHERE class_id = ?"), id); err != nil {
		return errors.Wrap(err, "counting class grades")
	}
	if cnt > 0 {
		return academic.ErrClassHasGrades
	}

	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM classes WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return rowsAffected(res, academic.ErrClassNotFound, "deleting class")
}
