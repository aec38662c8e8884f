package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/record"
	"github.com/trezcool/shule/core/user"
)

type entryRow struct {
	ClassID      string       `db:"class_id"`
	CourseCode   string       `db:"course_code"`
	CourseName   string       `db:"course_name"`
	Credits      int          `db:"credits"`
	SemesterID   string       `db:"semester_id"`
	SemesterName string       `db:"semester_name"`
	Total        null.Float64 `db:"total"`
	Letter       string       `db:"letter"`
	Locked       bool         `db:"locked"`
}

type recordRepository struct {
	baseRepository
}

var _ record.Repository = (*recordRepository)(nil) // interface compliance check

func NewRecordRepository(exec core.DBExecutor) *recordRepository {
	return &recordRepository{baseRepository{exec: exec}}
}

func (repo recordRepository) QueryEntries(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]record.Entry, error) {
	exe := repo.getExec(exec)

	var rows []entryRow
	err := exe.SelectContext(ctx, &rows, exe.Rebind(`
		SELECT g.class_id, co.code AS course_code, co.name AS course_name, co.credits,
		       c.semester_id, s.name AS semester_name, g.total, g.letter, g.locked
		FROM grades g
		JOIN classes c ON c.id = g.class_id
		JOIN courses co ON co.id = c.course_id
		JOIN semesters s ON s.id = c.semester_id
		WHERE g.student_id = ?
		ORDER BY s.start_date ASC, co.code ASC`), studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying record entries")
	}

	entries := make([]record.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, record.Entry{
			ClassID:      row.ClassID,
			CourseCode:   row.CourseCode,
			CourseName:   row.CourseName,
			Credits:      row.Credits,
			SemesterID:   row.SemesterID,
			SemesterName: row.SemesterName,
			Total:        row.Total.Ptr(),
			Letter:       row.Letter,
			Locked:       row.Locked,
		})
	}
	return entries, nil
}

func (repo recordRepository) GetDashboard(ctx context.Context, exec ...core.DBExecutor) (record.Dashboard, error) {
	exe := repo.getExec(exec)

	var dash record.Dashboard
	err := exe.GetContext(ctx, &dash, exe.Rebind(`
		SELECT
			(SELECT COUNT(*) FROM users WHERE role = ?) AS students,
			(SELECT COUNT(*) FROM users WHERE role = ?) AS lecturers,
			(SELECT COUNT(*) FROM courses) AS courses,
			(SELECT COUNT(*) FROM classes) AS classes,
			(SELECT COUNT(*) FROM users WHERE status = ?) AS locked_accounts,
			(SELECT COUNT(*) FROM grades WHERE total IS NULL) AS in_progress_grades`),
		string(user.RoleStudent), string(user.RoleLecturer), string(user.StatusLocked),
	)
	if err != nil {
		return record.Dashboard{}, errors.Wrap(err, "getting dashboard")
	}
	return dash, nil
}
