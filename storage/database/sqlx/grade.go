package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/grade"
)

const gradeSelect = `
SELECT g.id, g.student_id, g.class_id, g.attendance, g.midterm, g.final_exam, g.total, g.letter,
       g.locked, g.locked_at, g.created_at, g.updated_at,
       u.name AS student_name, s.code AS student_code
FROM grades g
JOIN classes c ON c.id = g.class_id
JOIN users u ON u.id = g.student_id
LEFT JOIN students s ON s.user_id = g.student_id`

type gradeRow struct {
	ID          string       `db:"id"`
	StudentID   string       `db:"student_id"`
	ClassID     string       `db:"class_id"`
	Attendance  null.Float64 `db:"attendance"`
	Midterm     null.Float64 `db:"midterm"`
	Final       null.Float64 `db:"final_exam"`
	Total       null.Float64 `db:"total"`
	Letter      string       `db:"letter"`
	Locked      bool         `db:"locked"`
	LockedAt    null.Time    `db:"locked_at"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
	StudentName string       `db:"student_name"`
	StudentCode null.String  `db:"student_code"`
}

func (row gradeRow) toGrade() grade.Grade {
	return grade.Grade{
		ID:          row.ID,
		StudentID:   row.StudentID,
		ClassID:     row.ClassID,
		Attendance:  row.Attendance.Ptr(),
		Midterm:     row.Midterm.Ptr(),
		Final:       row.Final.Ptr(),
		Total:       row.Total.Ptr(),
		Letter:      row.Letter,
		Locked:      row.Locked,
		LockedAt:    utcTime(row.LockedAt),
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
		StudentName: row.StudentName,
		StudentCode: row.StudentCode.String,
	}
}

func gradeFilterClause(filter *grade.QueryFilter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	var (
		conds []string
		args  []interface{}
	)
	if filter.StudentID != "" {
		conds = append(conds, "g.student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conds = append(conds, "g.class_id = ?")
		args = append(args, filter.ClassID)
	}
	if filter.SemesterID != "" {
		conds = append(conds, "c.semester_id = ?")
		args = append(args, filter.SemesterID)
	}
	if filter.Locked != nil {
		conds = append(conds, "g.locked = ?")
		args = append(args, *filter.Locked)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type gradeRepository struct {
	baseRepository
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(exec core.DBExecutor) *gradeRepository {
	return &gradeRepository{baseRepository{exec: exec}}
}

func (repo gradeRepository) CreateGrade(ctx context.Context, g grade.Grade, exec ...core.DBExecutor) (grade.Grade, error) {
	exe := repo.getExec(exec)
	g.ID = uuid.New().String()

	_, err := exe.ExecContext(ctx, exe.Rebind(`
		INSERT INTO grades (id, student_id, class_id, attendance, midterm, final_exam, total, letter,
		                    locked, locked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		g.ID, g.StudentID, g.ClassID, null.Float64FromPtr(g.Attendance), null.Float64FromPtr(g.Midterm),
		null.Float64FromPtr(g.Final), null.Float64FromPtr(g.Total), g.Letter, g.Locked, nullTime(g.LockedAt),
		g.CreatedAt.UTC(), g.UpdatedAt.UTC(),
	)
	if err != nil {
		if uniqueViolation(err, "student_id") {
			return grade.Grade{}, grade.ErrAlreadyEnrolled
		}
		return grade.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return g, nil
}

func (repo gradeRepository) QueryGrades(ctx context.Context, filter *grade.QueryFilter, exec ...core.DBExecutor) ([]grade.Grade, error) {
	exe := repo.getExec(exec)

	where, args := gradeFilterClause(filter)
	q := gradeSelect + where + " ORDER BY u.name ASC, g.created_at ASC"

	var rows []gradeRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	grades := make([]grade.Grade, 0, len(rows))
	for _, row := range rows {
		grades = append(grades, row.toGrade())
	}
	return grades, nil
}

func (repo gradeRepository) CountGrades(ctx context.Context, filter *grade.QueryFilter, exec ...core.DBExecutor) (int, error) {
	exe := repo.getExec(exec)

	where, args := gradeFilterClause(filter)
	q := "SELECT COUNT(*) FROM grades g JOIN classes c ON c.id = g.class_id" + where

	var cnt int
	if err := exe.GetContext(ctx, &cnt, exe.Rebind(q), args...); err != nil {
		return 0, errors.Wrap(err, "counting grades")
	}
	return cnt, nil
}

func (repo gradeRepository) GetGrade(ctx context.Context, id string, exec ...core.DBExecutor) (grade.Grade, error) {
	if _, err := uuid.Parse(id); err != nil {
		return grade.Grade{}, grade.ErrNotFound
	}
	exe := repo.getExec(exec)

	var row gradeRow
	if err := exe.GetContext(ctx, &row, exe.Rebind(gradeSelect+" WHERE g.id = ?"), id); err != nil {
		return grade.Grade{}, trapNoRowsErr(err, grade.ErrNotFound, "finding grade")
	}
	return row.toGrade(), nil
}

func (repo gradeRepository) UpdateGrade(ctx context.Context, g grade.Grade, exec ...core.DBExecutor) (grade.Grade, error) {
	exe := repo.getExec(exec)

	res, err := exe.ExecContext(ctx, exe.Rebind(`
		UPDATE grades
		SET attendance = ?, midterm = ?, final_exam = ?, total = ?, letter = ?, locked = ?, locked_at = ?,
		    updated_at = ?
		WHERE id = ? AND locked = ?`),
		null.Float64FromPtr(g.Attendance), null.Float64FromPtr(g.Midterm), null.Float64FromPtr(g.Final),
		null.Float64FromPtr(g.Total), g.Letter, g.Locked, nullTime(g.LockedAt), g.UpdatedAt.UTC(), g.ID, false,
	)
	if err != nil {
		return grade.Grade{}, errors.Wrap(err, "updating grade")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return grade.Grade{}, errors.Wrap(err, "updating grade")
	}
	if cnt == 0 {
		return grade.Grade{}, repo.lockedOrMissing(ctx, exe, g.ID)
	}
	return g, nil
}

// lockedOrMissing explains why a write guarded by `locked = false` touched no row.
func (repo gradeRepository) lockedOrMissing(ctx context.Context, exe core.DBExecutor, id string) error {
	var locked bool
	if err := exe.GetContext(ctx, &locked, exe.Rebind("SELECT locked FROM grades WHERE id = ?"), id); err != nil {
		return trapNoRowsErr(err, grade.ErrNotFound, "finding grade")
	}
	return grade.ErrGradeLocked
}

func (repo gradeRepository) DeleteGrade(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM grades WHERE id = ? AND locked = ?"), id, false)
	if err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	if cnt == 0 {
		return repo.lockedOrMissing(ctx, exe, id)
	}
	return nil
}
