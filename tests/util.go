// Package testutil holds the DB set up & factories shared by tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/grade"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/storage/database"
)

// PrepareDB opens a fresh, migrated SQLite database which is closed once t is done.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	role user.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:       name,
		Username:   uname,
		Email:      email,
		Role:       role,
		IsActive:   isActive,
		Credential: user.Credential{Status: user.StatusActive},
		CreatedAt:  tstamp,
		UpdatedAt:  tstamp,
	}
	switch role {
	case user.RoleStudent:
		usr.Student = &user.StudentProfile{Code: "S-" + uname}
	case user.RoleLecturer:
		usr.Lecturer = &user.LecturerProfile{Code: "L-" + uname}
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}

	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo academic.Repository, code, name string, credits int) academic.Course {
	t.Helper()

	now := time.Now().UTC()
	course, err := repo.CreateCourse(context.Background(), academic.Course{
		Code:      code,
		Name:      name,
		Credits:   credits,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return course
}

// CreateSemester creates a semester running from start, for days days.
func CreateSemester(t *testing.T, repo academic.Repository, name string, start time.Time, days int) academic.Semester {
	t.Helper()

	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	sem, err := repo.CreateSemester(context.Background(), academic.Semester{
		Name:      name,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, days),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateSemester() failed: %v", err)
	}
	return sem
}

// OpenSemester creates a semester which is open today.
func OpenSemester(t *testing.T, repo academic.Repository, name string) academic.Semester {
	return CreateSemester(t, repo, name, time.Now().UTC().AddDate(0, 0, -30), 120)
}

func CreateClass(
	t *testing.T,
	repo academic.Repository,
	course academic.Course,
	sem academic.Semester,
	section, lecturerID, schedule string,
	capacity int,
) academic.Class {
	t.Helper()

	now := time.Now().UTC()
	class, err := repo.CreateClass(context.Background(), academic.Class{
		CourseID:   course.ID,
		SemesterID: sem.ID,
		LecturerID: lecturerID,
		Section:    section,
		Schedule:   schedule,
		Capacity:   capacity,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	class, err = repo.GetClass(context.Background(), class.ID)
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return class
}

// CreateGrade enrolls studentID in classID, with scores when all three are given.
func CreateGrade(t *testing.T, repo grade.Repository, studentID, classID string, scores ...float64) grade.Grade {
	t.Helper()

	now := time.Now().UTC()
	g := grade.Grade{StudentID: studentID, ClassID: classID, CreatedAt: now, UpdatedAt: now}
	if len(scores) == 3 {
		g.Attendance, g.Midterm, g.Final = &scores[0], &scores[1], &scores[2]
		g.Recompute()
	}

	g, err := repo.CreateGrade(context.Background(), g)
	if err != nil {
		t.Fatalf("CreateGrade() failed: %v", err)
	}
	return g
}
