package grade_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/grade"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database/sqlx"
	"github.com/trezcool/shule/storage/memstore"
	"github.com/trezcool/shule/tests"
)

type fixture struct {
	svc     grade.Service
	repo    grade.Repository
	acaRepo academic.Repository
	usrRepo user.Repository
	student user.User
	class   academic.Class
}

func setup(t *testing.T) *fixture {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	db := testutil.PrepareDB(t)
	f := &fixture{
		repo:    sqlxrepos.NewGradeRepository(db),
		acaRepo: sqlxrepos.NewAcademicRepository(db),
		usrRepo: sqlxrepos.NewUserRepository(db),
	}
	usrSvc := user.NewService(db, f.usrRepo, user.Options{
		Conf:        conf,
		Logger:      logger,
		Sessions:    memstore.New[user.Session](0),
		ResetTokens: memstore.New[user.ResetToken](0),
	})
	acaSvc := academic.NewService(db, f.acaRepo, usrSvc, logger)
	f.svc = grade.NewService(db, f.repo, usrSvc, acaSvc, logger)

	f.student = testutil.CreateUser(t, f.usrRepo, "Stu Dent", "student", "stu@test.cd", "", user.RoleStudent, true)
	course := testutil.CreateCourse(t, f.acaRepo, "MATH101", "Calculus", 3)
	sem := testutil.OpenSemester(t, f.acaRepo, "2026 Spring")
	f.class = testutil.CreateClass(t, f.acaRepo, course, sem, "A", "", "", 2)
	return f
}

func scores(att, mid, fin float64) grade.Scores {
	return grade.Scores{Attendance: &att, Midterm: &mid, Final: &fin}
}

func TestService_Enroll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	lecturer := testutil.CreateUser(t, f.usrRepo, "Prof", "prof", "prof@test.cd", "", user.RoleLecturer, true)
	inactive := testutil.CreateUser(t, f.usrRepo, "Gone", "gone", "gone@test.cd", "", user.RoleStudent, false)
	second := testutil.CreateUser(t, f.usrRepo, "Second", "second", "second@test.cd", "", user.RoleStudent, true)
	third := testutil.CreateUser(t, f.usrRepo, "Third", "third", "third@test.cd", "", user.RoleStudent, true)

	course := testutil.CreateCourse(t, f.acaRepo, "HIST101", "History", 2)
	closedSem := testutil.CreateSemester(t, f.acaRepo, "2020 Spring", time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC), 120)
	closed := testutil.CreateClass(t, f.acaRepo, course, closedSem, "A", "", "", 0)

	tests := []struct {
		name      string
		studentID string
		classID   string
		wantErr   error
	}{
		{name: "unknown student", studentID: "lol", classID: f.class.ID, wantErr: grade.ErrNotStudent},
		{name: "not a student", studentID: lecturer.ID, classID: f.class.ID, wantErr: grade.ErrNotStudent},
		{name: "inactive student", studentID: inactive.ID, classID: f.class.ID, wantErr: grade.ErrNotStudent},
		{name: "unknown class", studentID: f.student.ID, classID: "lol", wantErr: academic.ErrClassNotFound},
		{name: "closed semester", studentID: f.student.ID, classID: closed.ID, wantErr: grade.ErrEnrollmentClosed},
		{name: "enrolled", studentID: f.student.ID, classID: f.class.ID},
		{name: "already enrolled", studentID: f.student.ID, classID: f.class.ID, wantErr: grade.ErrAlreadyEnrolled},
		{name: "last seat", studentID: second.ID, classID: f.class.ID},
		{name: "class full", studentID: third.ID, classID: f.class.ID, wantErr: grade.ErrClassFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := f.svc.Enroll(ctx, tt.studentID, tt.classID)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.studentID, g.StudentID)
			assert.Nil(t, g.Total)
			assert.Empty(t, g.Letter)
			assert.False(t, g.Locked)
		})
	}
}

func TestService_EnterScores(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	g, err := f.svc.Enroll(ctx, f.student.ID, f.class.ID)
	require.NoError(t, err)

	got, err := f.svc.EnterScores(ctx, g.ID, scores(10, 8, 9))
	require.NoError(t, err)
	require.NotNil(t, got.Total)
	assert.Equal(t, 8.8, *got.Total)
	assert.Equal(t, grade.LetterA, got.Letter)

	got, err = f.svc.EnterScores(ctx, g.ID, scores(5, 5, 3))
	require.NoError(t, err)
	assert.Equal(t, 3.8, *got.Total)
	assert.Equal(t, grade.LetterF, got.Letter)

	stored, err := f.svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.8, *stored.Total)
	assert.Equal(t, f.student.Name, stored.StudentName)
	assert.Equal(t, "S-student", stored.StudentCode)

	_, err = f.svc.Lock(ctx, g.ID)
	require.NoError(t, err)
	_, err = f.svc.EnterScores(ctx, g.ID, scores(10, 10, 10))
	assert.Equal(t, grade.ErrGradeLocked, err)
	assert.Equal(t, grade.ErrGradeLocked, f.svc.Unenroll(ctx, g.ID))
}

func TestService_Lock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	g, err := f.svc.Enroll(ctx, f.student.ID, f.class.ID)
	require.NoError(t, err)

	_, err = f.svc.Lock(ctx, g.ID)
	assert.Equal(t, grade.ErrIncomplete, err)

	_, err = f.svc.EnterScores(ctx, g.ID, scores(8, 7, 6))
	require.NoError(t, err)
	locked, err := f.svc.Lock(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, locked.Locked)
	assert.False(t, locked.LockedAt.IsZero())

	// locking twice is a noop
	again, err := f.svc.Lock(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, locked.LockedAt.Equal(again.LockedAt))
}

func TestService_LockClass(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := testutil.CreateUser(t, f.usrRepo, "Other", "other", "other@test.cd", "", user.RoleStudent, true)

	g1, err := f.svc.Enroll(ctx, f.student.ID, f.class.ID)
	require.NoError(t, err)
	g2, err := f.svc.Enroll(ctx, other.ID, f.class.ID)
	require.NoError(t, err)
	_, err = f.svc.EnterScores(ctx, g1.ID, scores(9, 9, 9))
	require.NoError(t, err)

	// all or nothing
	_, err = f.svc.LockClass(ctx, f.class.ID)
	assert.Equal(t, grade.ErrIncomplete, err)
	got, err := f.svc.Get(ctx, g1.ID)
	require.NoError(t, err)
	assert.False(t, got.Locked)

	_, err = f.svc.EnterScores(ctx, g2.ID, scores(6, 5, 4))
	require.NoError(t, err)
	cnt, err := f.svc.LockClass(ctx, f.class.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, cnt)

	grades, err := f.svc.ListByClass(ctx, f.class.ID)
	require.NoError(t, err)
	require.Len(t, grades, 2)
	for _, g := range grades {
		assert.True(t, g.Locked)
	}

	cnt, err = f.svc.LockClass(ctx, f.class.ID)
	require.NoError(t, err)
	assert.Zero(t, cnt)
}

func TestService_Unenroll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	g, err := f.svc.Enroll(ctx, f.student.ID, f.class.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Unenroll(ctx, g.ID))
	_, err = f.svc.Get(ctx, g.ID)
	assert.Equal(t, grade.ErrNotFound, err)

	grades, err := f.svc.ListByStudent(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Empty(t, grades)
}
