package academic_test

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database/sqlx"
	"github.com/trezcool/shule/storage/memstore"
	"github.com/trezcool/shule/tests"
)

type fixture struct {
	db       *sqlx.DB
	svc      academic.Service
	repo     academic.Repository
	usrRepo  user.Repository
	lecturer user.User
	course   academic.Course
	sem      academic.Semester
}

func setup(t *testing.T) *fixture {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	db := testutil.PrepareDB(t)
	f := &fixture{
		db:      db,
		repo:    sqlxrepos.NewAcademicRepository(db),
		usrRepo: sqlxrepos.NewUserRepository(db),
	}
	usrSvc := user.NewService(db, f.usrRepo, user.Options{
		Conf:        conf,
		Logger:      logger,
		Sessions:    memstore.New[user.Session](0),
		ResetTokens: memstore.New[user.ResetToken](0),
	})
	f.svc = academic.NewService(db, f.repo, usrSvc, logger)

	f.lecturer = testutil.CreateUser(t, f.usrRepo, "Prof Kabila", "kabila", "kabila@test.cd", "", user.RoleLecturer, true)
	f.course = testutil.CreateCourse(t, f.repo, "MATH101", "Calculus", 3)
	f.sem = testutil.OpenSemester(t, f.repo, "2026 Spring")
	return f
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok, "want *core.ValidationError, got %v", err)
	require.NotEmpty(t, vErr.Fields)
	return vErr.Fields[0].Field
}

func TestService_CreateClass(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, f.usrRepo, "Stu", "stu", "stu@test.cd", "", user.RoleStudent, true)

	_, err := f.svc.CreateClass(ctx, academic.NewClass{
		CourseID: f.course.ID, SemesterID: f.sem.ID, LecturerID: f.lecturer.ID,
		Section: "A", Schedule: "Monday 08:00-10:00", Capacity: 30,
	})
	require.NoError(t, err)

	tests := []struct {
		name      string
		nc        academic.NewClass
		wantField string
	}{
		{
			name:      "unknown course",
			nc:        academic.NewClass{CourseID: f.sem.ID, SemesterID: f.sem.ID, Section: "B"},
			wantField: "course_id",
		},
		{
			name:      "unknown semester",
			nc:        academic.NewClass{CourseID: f.course.ID, SemesterID: "lol", Section: "B"},
			wantField: "semester_id",
		},
		{
			name:      "not a lecturer",
			nc:        academic.NewClass{CourseID: f.course.ID, SemesterID: f.sem.ID, LecturerID: student.ID, Section: "B"},
			wantField: "lecturer_id",
		},
		{
			name:      "section taken",
			nc:        academic.NewClass{CourseID: f.course.ID, SemesterID: f.sem.ID, Section: "A"},
			wantField: "section",
		},
		{
			name: "overlapping slot",
			nc: academic.NewClass{
				CourseID: f.course.ID, SemesterID: f.sem.ID, LecturerID: f.lecturer.ID,
				Section: "B", Schedule: "monday 09:00-11:00",
			},
			wantField: "schedule",
		},
		{
			name: "adjacent slot",
			nc: academic.NewClass{
				CourseID: f.course.ID, SemesterID: f.sem.ID, LecturerID: f.lecturer.ID,
				Section: "C", Schedule: "Monday 10:00-12:00",
			},
		},
		{
			name: "no lecturer",
			nc:   academic.NewClass{CourseID: f.course.ID, SemesterID: f.sem.ID, Section: "D", Schedule: "Monday 08:00-10:00"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, err := f.svc.CreateClass(ctx, tt.nc)
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, fieldOf(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "MATH101", class.CourseCode)
			assert.Equal(t, f.sem.Name, class.SemesterName)
		})
	}
}

func TestService_AssignLecturer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := testutil.CreateCourse(t, f.repo, "PHYS101", "Mechanics", 4)
	nextSem := testutil.CreateSemester(t, f.repo, "2026 Fall", f.sem.EndDate.AddDate(0, 0, 10), 100)

	monday := testutil.CreateClass(t, f.repo, f.course, f.sem, "A", f.lecturer.ID, "Monday 08:00-10:00", 0)
	free := testutil.CreateClass(t, f.repo, other, f.sem, "A", "", "", 0)
	later := testutil.CreateClass(t, f.repo, other, nextSem, "A", "", "", 0)

	tests := []struct {
		name      string
		classID   string
		schedule  string
		wantField string
	}{
		{name: "overlap", classID: free.ID, schedule: "Monday 09:30-10:30", wantField: "schedule"},
		{name: "other semester", classID: later.ID, schedule: "Monday 08:00-10:00"},
		{name: "same class, new slot", classID: monday.ID, schedule: "Monday 09:00-11:00"},
		{name: "other day", classID: free.ID, schedule: "Tuesday 08:00-10:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, err := f.svc.AssignLecturer(ctx, tt.classID, academic.AssignClass{LecturerID: f.lecturer.ID, Schedule: tt.schedule})
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, fieldOf(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, f.lecturer.ID, class.LecturerID)
			assert.Equal(t, f.lecturer.Name, class.LecturerName)
			assert.Equal(t, tt.schedule, class.Schedule)
		})
	}

	timetable, err := f.svc.LecturerTimetable(ctx, f.lecturer.ID, f.sem.ID)
	require.NoError(t, err)
	require.Len(t, timetable, 2)
	assert.Equal(t, monday.ID, timetable[0].Class.ID)
	assert.Equal(t, "Monday", timetable[0].Day)
	assert.Equal(t, "09:00", timetable[0].Start)
	assert.Equal(t, free.ID, timetable[1].Class.ID)
	assert.Equal(t, "Tuesday", timetable[1].Day)
}

func TestService_DeleteCourse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	empty := testutil.CreateCourse(t, f.repo, "CHEM101", "Chemistry", 2)
	_ = testutil.CreateClass(t, f.repo, f.course, f.sem, "A", "", "", 0)

	assert.Equal(t, academic.ErrCourseInUse, f.svc.DeleteCourse(ctx, f.course.ID))
	assert.NoError(t, f.svc.DeleteCourse(ctx, empty.ID))
	assert.Equal(t, academic.ErrCourseNotFound, f.svc.DeleteCourse(ctx, empty.ID))
}

func TestService_DeleteClass(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	gradeRepo := sqlxrepos.NewGradeRepository(f.db)
	student := testutil.CreateUser(t, f.usrRepo, "Stu Dent", "stu", "stu@test.cd", "", user.RoleStudent, true)
	enrolled := testutil.CreateClass(t, f.repo, f.course, f.sem, "A", "", "", 0)
	empty := testutil.CreateClass(t, f.repo, f.course, f.sem, "B", "", "", 0)
	g := testutil.CreateGrade(t, gradeRepo, student.ID, enrolled.ID, 9, 9, 9)
	g.Locked = true
	g.LockedAt = g.UpdatedAt
	_, err := gradeRepo.UpdateGrade(ctx, g)
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{name: "graded class", id: enrolled.ID, wantErr: academic.ErrClassHasGrades},
		{name: "empty class", id: empty.ID},
		{name: "already deleted", id: empty.ID, wantErr: academic.ErrClassNotFound},
		{name: "invalid id", id: "lol", wantErr: academic.ErrClassNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, f.svc.DeleteClass(ctx, tt.id))
		})
	}

	// the locked record survives
	got, err := gradeRepo.GetGrade(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, got.Locked)
}

func TestService_CreateCourse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	course, err := f.svc.CreateCourse(ctx, academic.NewCourse{Code: "cs101", Name: "Programming", Credits: 4})
	require.NoError(t, err)
	assert.Equal(t, "CS101", course.Code)

	_, err = f.svc.CreateCourse(ctx, academic.NewCourse{Code: "math101", Name: "Calculus II", Credits: 3})
	assert.Equal(t, "code", fieldOf(t, err))

	courses, err := f.svc.QueryCourses(ctx, &academic.CourseFilter{Search: "calc"})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, f.course.ID, courses[0].ID)
}
