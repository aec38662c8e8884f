package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

const userSelect = `
SELECT u.id, u.name, u.username, u.email, u.role, u.is_active, u.password_hash,
       u.failed_attempts, u.status, u.locked_at, u.created_at, u.updated_at, u.last_login,
       s.code AS student_code, s.major AS student_major, s.cohort_year AS student_cohort_year,
       s.phone AS student_phone, s.date_of_birth AS student_date_of_birth,
       l.code AS lecturer_code, l.department AS lecturer_department, l.title AS lecturer_title,
       l.phone AS lecturer_phone
FROM users u
LEFT JOIN students s ON s.user_id = u.id
LEFT JOIN lecturers l ON l.user_id = u.id`

var userOrderColumns = map[string]string{
	"name":       "u.name",
	"username":   "u.username",
	"email":      "u.email",
	"role":       "u.role",
	"created_at": "u.created_at",
	"last_login": "u.last_login",
}

type userRow struct {
	ID             string      `db:"id"`
	Name           string      `db:"name"`
	Username       null.String `db:"username"`
	Email          null.String `db:"email"`
	Role           string      `db:"role"`
	IsActive       bool        `db:"is_active"`
	PasswordHash   string      `db:"password_hash"`
	FailedAttempts int         `db:"failed_attempts"`
	Status         string      `db:"status"`
	LockedAt       null.Time   `db:"locked_at"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
	LastLogin      null.Time   `db:"last_login"`

	StudentCode        null.String `db:"student_code"`
	StudentMajor       null.String `db:"student_major"`
	StudentCohortYear  null.Int    `db:"student_cohort_year"`
	StudentPhone       null.String `db:"student_phone"`
	StudentDateOfBirth null.Time   `db:"student_date_of_birth"`

	LecturerCode       null.String `db:"lecturer_code"`
	LecturerDepartment null.String `db:"lecturer_department"`
	LecturerTitle      null.String `db:"lecturer_title"`
	LecturerPhone      null.String `db:"lecturer_phone"`
}

func (row userRow) toUser() user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		Role:         user.Role(row.Role),
		IsActive:     row.IsActive,
		PasswordHash: []byte(row.PasswordHash),
		Credential: user.Credential{
			FailedAttempts: row.FailedAttempts,
			Status:         user.Status(row.Status),
			LockedAt:       utcTime(row.LockedAt),
		},
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
		LastLogin: utcTime(row.LastLogin),
	}
	if row.StudentCode.Valid {
		usr.Student = &user.StudentProfile{
			Code:        row.StudentCode.String,
			Major:       row.StudentMajor.String,
			CohortYear:  row.StudentCohortYear.Int,
			Phone:       row.StudentPhone.String,
			DateOfBirth: utcTime(row.StudentDateOfBirth),
		}
	}
	if row.LecturerCode.Valid {
		usr.Lecturer = &user.LecturerProfile{
			Code:       row.LecturerCode.String,
			Department: row.LecturerDepartment.String,
			Title:      row.LecturerTitle.String,
			Phone:      row.LecturerPhone.String,
		}
	}
	return usr
}

func utcTime(t null.Time) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

type userRepository struct {
	baseRepository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{baseRepository{exec: exec}}
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	check := func(column, value string, taken error) error {
		if value == "" {
			return nil
		}
		q := "SELECT COUNT(*) FROM users WHERE " + column + " = ?"
		args := []interface{}{value}
		if len(excludedUsers) > 0 {
			ids := make([]string, 0, len(excludedUsers))
			for _, u := range excludedUsers {
				ids = append(ids, u.ID)
			}
			q += " AND id NOT IN (?)"
			args = append(args, ids)
		}
		q, args, err := sqlx.In(q, args...)
		if err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}

		var cnt int
		if err = exe.GetContext(ctx, &cnt, exe.Rebind(q), args...); err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
		if cnt > 0 {
			return taken
		}
		return nil
	}

	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (repo userRepository) saveProfile(ctx context.Context, exe core.DBExecutor, usr user.User) error {
	for _, table := range []string{"students", "lecturers"} {
		if _, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM "+table+" WHERE user_id = ?"), usr.ID); err != nil {
			return errors.Wrap(err, "clearing user profile")
		}
	}

	var err error
	switch {
	case usr.Role == user.RoleStudent && usr.Student != nil:
		p := usr.Student
		_, err = exe.ExecContext(ctx, exe.Rebind(`
			INSERT INTO students (user_id, code, major, cohort_year, phone, date_of_birth)
			VALUES (?, ?, ?, ?, ?, ?)`),
			usr.ID, p.Code, p.Major, null.NewInt(p.CohortYear, p.CohortYear != 0), p.Phone, nullTime(p.DateOfBirth),
		)
	case usr.Role == user.RoleLecturer && usr.Lecturer != nil:
		p := usr.Lecturer
		_, err = exe.ExecContext(ctx, exe.Rebind(`
			INSERT INTO lecturers (user_id, code, department, title, phone)
			VALUES (?, ?, ?, ?, ?)`),
			usr.ID, p.Code, p.Department, p.Title, p.Phone,
		)
	}
	if err != nil {
		if uniqueViolation(err, "code") {
			return user.ErrCodeExists
		}
		return errors.Wrap(err, "saving user profile")
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)
	usr.ID = uuid.New().String()
	if usr.Credential.Status == "" {
		usr.Credential.Status = user.StatusActive
	}

	_, err := exe.ExecContext(ctx, exe.Rebind(`
		INSERT INTO users (id, name, username, email, role, is_active, password_hash,
		                   failed_attempts, status, locked_at, created_at, updated_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		usr.ID, usr.Name, nullString(usr.Username), nullString(usr.Email), string(usr.Role), usr.IsActive,
		string(usr.PasswordHash), usr.Credential.FailedAttempts, string(usr.Credential.Status),
		nullTime(usr.Credential.LockedAt), usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), nullTime(usr.LastLogin),
	)
	if err != nil {
		switch {
		case uniqueViolation(err, "username"):
			return user.User{}, user.ErrUsernameExists
		case uniqueViolation(err, "email"):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}

	if err = repo.saveProfile(ctx, exe, usr); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	exe := repo.getExec(exec)

	var (
		conds []string
		args  []interface{}
	)
	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + strings.ToLower(filter.Search) + "%"
			conds = append(conds, "(LOWER(u.name) LIKE ? OR LOWER(u.username) LIKE ? OR LOWER(u.email) LIKE ?)")
			args = append(args, val, val, val)
		}
		if len(filter.Roles) > 0 {
			conds = append(conds, "u.role IN (?)")
			args = append(args, filter.Roles)
		}
		if filter.IsActive != nil {
			conds = append(conds, "u.is_active = ?")
			args = append(args, *filter.IsActive)
		}
		if filter.Status != "" {
			conds = append(conds, "u.status = ?")
			args = append(args, filter.Status)
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, "u.created_at >= ?")
			args = append(args, filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, "u.created_at <= ?")
			args = append(args, filter.CreatedTo.UTC())
		}
	}

	q := userSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += core.OrderByClause(ordering, userOrderColumns, "u.name ASC")

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	var rows []userRow
	if err = exe.SelectContext(ctx, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)

	var (
		cond string
		args []interface{}
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		cond, args = "u.id = ?", []interface{}{filter.ID}
	case filter.Username != "":
		cond, args = "u.username = ?", []interface{}{filter.Username}
	case filter.Email != "":
		cond, args = "u.email = ?", []interface{}{filter.Email}
	case filter.UsernameOrEmail != "":
		cond, args = "(u.username = ? OR u.email = ?)", []interface{}{filter.UsernameOrEmail, filter.UsernameOrEmail}
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := exe.GetContext(ctx, &row, exe.Rebind(userSelect+" WHERE "+cond), args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.toUser(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)

	res, err := exe.ExecContext(ctx, exe.Rebind(`
		UPDATE users
		SET name = ?, username = ?, email = ?, role = ?, is_active = ?, password_hash = ?, updated_at = ?
		WHERE id = ?`),
		usr.Name, nullString(usr.Username), nullString(usr.Email), string(usr.Role), usr.IsActive,
		string(usr.PasswordHash), usr.UpdatedAt.UTC(), usr.ID,
	)
	if err != nil {
		switch {
		case uniqueViolation(err, "username"):
			return user.User{}, user.ErrUsernameExists
		case uniqueViolation(err, "email"):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err = rowsAffected(res, user.ErrNotFound, "updating user"); err != nil {
		return user.User{}, err
	}

	if err = repo.saveProfile(ctx, exe, usr); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo userRepository) UpdateCredential(ctx context.Context, usr user.User, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	res, err := exe.ExecContext(ctx, exe.Rebind(`
		UPDATE users SET failed_attempts = ?, status = ?, locked_at = ?, last_login = ? WHERE id = ?`),
		usr.Credential.FailedAttempts, string(usr.Credential.Status), nullTime(usr.Credential.LockedAt),
		nullTime(usr.LastLogin), usr.ID,
	)
	if err != nil {
		return errors.Wrap(err, "updating user credential")
	}
	return rowsAffected(res, user.ErrNotFound, "updating user credential")
}

type credentialRow struct {
	FailedAttempts int       `db:"failed_attempts"`
	Status         string    `db:"status"`
	LockedAt       null.Time `db:"locked_at"`
}

func (repo userRepository) RecordFailedAttempt(ctx context.Context, id string, now time.Time, maxAttempts int, exec ...core.DBExecutor) (user.Credential, error) {
	exe := repo.getExec(exec)
	maxAttempts = user.EffectiveMaxAttempts(maxAttempts)

	// right-hand sides see the row as it was before the update
	res, err := exe.ExecContext(ctx, exe.Rebind(`
		UPDATE users
		SET failed_attempts = failed_attempts + 1,
		    status = CASE WHEN failed_attempts + 1 >= ? THEN ? ELSE status END,
		    locked_at = CASE WHEN failed_attempts + 1 >= ? THEN ? ELSE locked_at END
		WHERE id = ? AND status <> ?`),
		maxAttempts, string(user.StatusLocked), maxAttempts, now.UTC(), id, string(user.StatusLocked),
	)
	if err != nil {
		return user.Credential{}, errors.Wrap(err, "recording failed attempt")
	}
	if err = rowsAffected(res, user.ErrAccountLocked, "recording failed attempt"); err != nil {
		return user.Credential{}, err
	}

	var row credentialRow
	if err = exe.GetContext(ctx, &row, exe.Rebind(
		"SELECT failed_attempts, status, locked_at FROM users WHERE id = ?"), id,
	); err != nil {
		return user.Credential{}, trapNoRowsErr(err, user.ErrNotFound, "reading credential")
	}
	return user.Credential{
		FailedAttempts: row.FailedAttempts,
		Status:         user.Status(row.Status),
		LockedAt:       utcTime(row.LockedAt),
	}, nil
}

func (repo userRepository) RecordLogin(ctx context.Context, id string, now time.Time, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	res, err := exe.ExecContext(ctx, exe.Rebind(
		"UPDATE users SET failed_attempts = 0, last_login = ? WHERE id = ? AND status = ?"),
		now.UTC(), id, string(user.StatusActive),
	)
	if err != nil {
		return errors.Wrap(err, "recording login")
	}
	return rowsAffected(res, user.ErrAccountLocked, "recording login")
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	exe := repo.getExec(exec)

	q, args, err := sqlx.In("SELECT COUNT(*) FROM grades WHERE student_id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "counting user grades")
	}
	var graded int
	if err = exe.GetContext(ctx, &graded, exe.Rebind(q), args...); err != nil {
		return 0, errors.Wrap(err, "counting user grades")
	}
	if graded > 0 {
		return 0, user.ErrHasGrades
	}

	q, args, err = sqlx.In("DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	res, err := exe.ExecContext(ctx, exe.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(cnt), nil
}
