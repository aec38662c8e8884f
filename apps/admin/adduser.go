package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var errCodeRequired = errors.New("-code is required for students & lecturers")

type newUserArgs struct {
	name, uname, email string
	role               user.Role
	code               string
	pwd                string
}

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(nu newUserArgs) error {
	ctx := context.Background()
	uname := core.CleanString(nu.uname, true /* lower */)
	email := core.CleanString(nu.email, true /* lower */)
	code := core.CleanString(nu.code)

	if !nu.role.IsValid() {
		return errors.Errorf("invalid role %q", nu.role)
	}
	if nu.role != user.RoleAdmin && code == "" {
		return errCodeRequired
	}

	key := uname
	if key == "" {
		key = email
	}
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: key})
	exists := err == nil
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{Credential: user.Credential{Status: user.StatusActive}}
	}

	now := time.Now().UTC()
	if name := core.CleanString(nu.name); name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = key
	}
	usr.Username = uname
	usr.Email = email
	usr.Role = nu.role
	usr.IsActive = true
	usr.UpdatedAt = now
	usr.Student, usr.Lecturer = nil, nil
	switch nu.role {
	case user.RoleStudent:
		usr.Student = &user.StudentProfile{Code: code}
	case user.RoleLecturer:
		usr.Lecturer = &user.LecturerProfile{Code: code}
	}
	if err = usr.SetPassword(nu.pwd); err != nil {
		return err
	}

	if exists {
		if err = cli.usrRepo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email, []user.User{usr}); err != nil {
			return err
		}
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
		return err
	}
	if err = cli.usrRepo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email, nil); err != nil {
		return err
	}
	usr.CreatedAt = now
	_, err = cli.usrRepo.CreateUser(ctx, usr)
	return err
}
