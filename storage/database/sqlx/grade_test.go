package sqlxrepos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/grade"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/tests"
)

func TestGradeRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	usrRepo := NewUserRepository(db)
	acaRepo := NewAcademicRepository(db)
	repo := NewGradeRepository(db)
	ctx := context.Background()
	bPtr := func(b bool) *bool { return &b }

	amy := testutil.CreateUser(t, usrRepo, "Amy", "amy", "amy@test.cd", "", user.RoleStudent, true)
	bob := testutil.CreateUser(t, usrRepo, "Bob", "bob", "bob@test.cd", "", user.RoleStudent, true)
	course := testutil.CreateCourse(t, acaRepo, "MATH101", "Calculus", 3)
	sem1 := testutil.OpenSemester(t, acaRepo, "2026 Spring")
	sem2 := testutil.CreateSemester(t, acaRepo, "2027 Spring", sem1.EndDate.AddDate(0, 2, 0), 100)
	class1 := testutil.CreateClass(t, acaRepo, course, sem1, "A", "", "", 0)
	class2 := testutil.CreateClass(t, acaRepo, course, sem2, "A", "", "", 0)

	amy1 := testutil.CreateGrade(t, repo, amy.ID, class1.ID, 9, 9, 9)
	bob1 := testutil.CreateGrade(t, repo, bob.ID, class1.ID)
	amy2 := testutil.CreateGrade(t, repo, amy.ID, class2.ID)

	_, err := repo.CreateGrade(ctx, grade.Grade{StudentID: amy.ID, ClassID: class1.ID})
	assert.Equal(t, grade.ErrAlreadyEnrolled, err)

	amy1.Locked = true
	amy1.LockedAt = amy1.UpdatedAt
	_, err = repo.UpdateGrade(ctx, amy1)
	require.NoError(t, err)

	ids := func(grades []grade.Grade) []string {
		res := make([]string, 0, len(grades))
		for _, g := range grades {
			res = append(res, g.ID)
		}
		return res
	}

	tests := []struct {
		name   string
		filter *grade.QueryFilter
		want   []string
	}{
		{name: "class", filter: &grade.QueryFilter{ClassID: class1.ID}, want: []string{amy1.ID, bob1.ID}},
		{name: "student", filter: &grade.QueryFilter{StudentID: amy.ID}, want: []string{amy1.ID, amy2.ID}},
		{name: "semester", filter: &grade.QueryFilter{SemesterID: sem2.ID}, want: []string{amy2.ID}},
		{name: "unlocked", filter: &grade.QueryFilter{ClassID: class1.ID, Locked: bPtr(false)}, want: []string{bob1.ID}},
		{name: "locked", filter: &grade.QueryFilter{Locked: bPtr(true)}, want: []string{amy1.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QueryGrades(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))

			cnt, err := repo.CountGrades(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), cnt)
		})
	}

	got, err := repo.GetGrade(ctx, amy1.ID)
	require.NoError(t, err)
	assert.True(t, got.Locked)
	assert.Equal(t, 9.0, *got.Total)
	assert.Equal(t, grade.LetterA, got.Letter)
	assert.Nil(t, bob1.Total)

	require.NoError(t, repo.DeleteGrade(ctx, bob1.ID))
	assert.Equal(t, grade.ErrNotFound, repo.DeleteGrade(ctx, bob1.ID))
	_, err = repo.GetGrade(ctx, bob1.ID)
	assert.Equal(t, grade.ErrNotFound, err)
}

func TestGradeRepository_StaleWrites(t *testing.T) {
	db := testutil.PrepareDB(t)
	usrRepo := NewUserRepository(db)
	acaRepo := NewAcademicRepository(db)
	repo := NewGradeRepository(db)
	ctx := context.Background()

	amy := testutil.CreateUser(t, usrRepo, "Amy", "amy", "amy@test.cd", "", user.RoleStudent, true)
	course := testutil.CreateCourse(t, acaRepo, "MATH101", "Calculus", 3)
	sem := testutil.OpenSemester(t, acaRepo, "2026 Spring")
	class := testutil.CreateClass(t, acaRepo, course, sem, "A", "", "", 0)
	g := testutil.CreateGrade(t, repo, amy.ID, class.ID, 9, 9, 9)

	// read before someone else locks it
	stale, err := repo.GetGrade(ctx, g.ID)
	require.NoError(t, err)

	locked := stale
	locked.Locked = true
	locked.LockedAt = g.UpdatedAt
	_, err = repo.UpdateGrade(ctx, locked)
	require.NoError(t, err)

	one := 1.0
	require.NoError(t, stale.Apply(grade.Scores{Attendance: &one, Midterm: &one, Final: &one}))
	_, err = repo.UpdateGrade(ctx, stale)
	assert.Equal(t, grade.ErrGradeLocked, err)
	assert.Equal(t, grade.ErrGradeLocked, repo.DeleteGrade(ctx, g.ID))

	got, err := repo.GetGrade(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, got.Locked)
	assert.Equal(t, 9.0, *got.Total)

	stale.ID = "b0d5a5d4-0000-4000-8000-000000000000"
	_, err = repo.UpdateGrade(ctx, stale)
	assert.Equal(t, grade.ErrNotFound, err)
}
