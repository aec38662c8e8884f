package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/tests"
)

func userIDs(users []user.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func TestUserRepository_QueryUsers(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	bPtr := func(b bool) *bool { return &b }

	now := time.Now().UTC()
	admin := testutil.CreateUser(t, repo, "Admin", "admin", "admin@test.cd", "", user.RoleAdmin, true, now.Add(-3*time.Hour))
	prof := testutil.CreateUser(t, repo, "Prof Tshisekedi", "prof", "prof@test.cd", "", user.RoleLecturer, true, now.Add(-2*time.Hour))
	stu := testutil.CreateUser(t, repo, "Stu Dent", "stu", "stu@school.cd", "", user.RoleStudent, true, now.Add(-1*time.Hour))
	gone := testutil.CreateUser(t, repo, "Gone", "gone", "gone@test.cd", "", user.RoleStudent, false, now)

	tests := []struct {
		name     string
		filter   *user.QueryFilter
		ordering []core.DBOrdering
		want     []user.User
	}{
		{name: "all", want: []user.User{admin, gone, prof, stu}},
		{name: "search name", filter: &user.QueryFilter{Search: "tshi"}, want: []user.User{prof}},
		{name: "search email", filter: &user.QueryFilter{Search: "SCHOOL"}, want: []user.User{stu}},
		{name: "roles", filter: &user.QueryFilter{Roles: []string{"student", "admin"}}, want: []user.User{admin, gone, stu}},
		{name: "inactive", filter: &user.QueryFilter{IsActive: bPtr(false)}, want: []user.User{gone}},
		{
			name:   "created range",
			filter: &user.QueryFilter{CreatedFrom: now.Add(-150 * time.Minute), CreatedTo: now.Add(-30 * time.Minute)},
			want:   []user.User{prof, stu},
		},
		{name: "ordering", ordering: []core.DBOrdering{{Field: "created_at"}}, want: []user.User{gone, stu, prof, admin}},
		{name: "unknown ordering", ordering: []core.DBOrdering{{Field: "password_hash"}}, want: []user.User{admin, gone, prof, stu}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QueryUsers(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, userIDs(tt.want), userIDs(got))
		})
	}
}

func TestUserRepository_GetUser(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	stu := testutil.CreateUser(t, repo, "Stu Dent", "stu", "stu@test.cd", "Sup3r$ecret!", user.RoleStudent, true)

	tests := []struct {
		name    string
		filter  user.GetFilter
		wantErr error
	}{
		{name: "empty filter", wantErr: user.ErrNotFound},
		{name: "malformed id", filter: user.GetFilter{ID: "lol"}, wantErr: user.ErrNotFound},
		{name: "by id", filter: user.GetFilter{ID: stu.ID}},
		{name: "by username", filter: user.GetFilter{Username: "stu"}},
		{name: "by email", filter: user.GetFilter{Email: "stu@test.cd"}},
		{name: "by username or email", filter: user.GetFilter{UsernameOrEmail: "stu@test.cd"}},
		{name: "unknown", filter: user.GetFilter{Username: "nobody"}, wantErr: user.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetUser(ctx, tt.filter)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, stu.ID, got.ID)
			assert.Equal(t, &user.StudentProfile{Code: "S-stu"}, got.Student)
			assert.Nil(t, got.Lecturer)
			assert.NoError(t, got.CheckPassword("Sup3r$ecret!"))
		})
	}
}

func TestUserRepository_Credential(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "Stu Dent", "stu", "stu@test.cd", "", user.RoleStudent, true)

	lockedAt := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	usr.Credential = user.Credential{FailedAttempts: 5, Status: user.StatusLocked, LockedAt: lockedAt}
	require.NoError(t, repo.UpdateCredential(ctx, usr))

	// UpdateUser leaves the lockout alone
	usr.Name = "Renamed"
	usr.Credential = user.Credential{Status: user.StatusActive}
	_, err := repo.UpdateUser(ctx, usr)
	require.NoError(t, err)

	got, err := repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, user.Credential{FailedAttempts: 5, Status: user.StatusLocked, LockedAt: lockedAt}, got.Credential)

	usr.ID = "3f0a7e2c-0000-4000-8000-000000000000"
	assert.Equal(t, user.ErrNotFound, repo.UpdateCredential(ctx, usr))
}

func TestUserRepository_Uniqueness(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	stu := testutil.CreateUser(t, repo, "Stu Dent", "stu", "stu@test.cd", "", user.RoleStudent, true)

	assert.Equal(t, user.ErrUsernameExists, repo.CheckUsernameUniqueness(ctx, "stu", "", nil))
	assert.Equal(t, user.ErrEmailExists, repo.CheckUsernameUniqueness(ctx, "other", "stu@test.cd", nil))
	assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "stu", "stu@test.cd", []user.User{stu}))

	_, err := repo.CreateUser(ctx, user.User{Name: "Dup", Username: "stu", Role: user.RoleAdmin})
	assert.Equal(t, user.ErrUsernameExists, err)

	cnt, err := repo.DeleteUsersByID(ctx, []string{stu.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
	cnt, err = repo.DeleteUsersByID(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, cnt)
}

func TestUserRepository_RecordFailedAttempt(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	usr := testutil.CreateUser(t, repo, "Jane Doe", "jane", "jane@test.cd", "", user.RoleStudent, true)

	tests := []struct {
		name     string
		wantCred user.Credential
		wantErr  error
	}{
		{name: "first", wantCred: user.Credential{FailedAttempts: 1, Status: user.StatusActive}},
		{name: "second", wantCred: user.Credential{FailedAttempts: 2, Status: user.StatusActive}},
		{name: "third locks", wantCred: user.Credential{FailedAttempts: 3, Status: user.StatusLocked, LockedAt: now}},
		{name: "already locked", wantErr: user.ErrAccountLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := repo.RecordFailedAttempt(ctx, usr.ID, now, 3)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCred.FailedAttempts, cred.FailedAttempts)
			assert.Equal(t, tt.wantCred.Status, cred.Status)
			assert.True(t, tt.wantCred.LockedAt.Equal(cred.LockedAt))
		})
	}

	got, err := repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Credential.FailedAttempts)
	assert.True(t, got.Credential.IsLocked())
}

func TestUserRepository_RecordLogin(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	active := testutil.CreateUser(t, repo, "Jane Doe", "jane", "jane@test.cd", "", user.RoleStudent, true)
	locked := testutil.CreateUser(t, repo, "John Doe", "john", "john@test.cd", "", user.RoleStudent, true)

	_, err := repo.RecordFailedAttempt(ctx, active.ID, now, 5)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = repo.RecordFailedAttempt(ctx, locked.ID, now, 2)
		require.NoError(t, err)
	}

	require.NoError(t, repo.RecordLogin(ctx, active.ID, now))
	got, err := repo.GetUser(ctx, user.GetFilter{ID: active.ID})
	require.NoError(t, err)
	assert.Zero(t, got.Credential.FailedAttempts)
	assert.True(t, now.Equal(got.LastLogin))

	// a login that raced with the lock must not lift it
	assert.Equal(t, user.ErrAccountLocked, repo.RecordLogin(ctx, locked.ID, now))
	got, err = repo.GetUser(ctx, user.GetFilter{ID: locked.ID})
	require.NoError(t, err)
	assert.True(t, got.Credential.IsLocked())
	assert.Equal(t, 2, got.Credential.FailedAttempts)
	assert.True(t, got.LastLogin.IsZero())
}
