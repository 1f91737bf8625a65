package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/user"
)

const (
	roleAdmin   = "admin"
	roleTeacher = "teacher"
	roleStudent = "student"
)

var cliRoles = map[string][]string{
	roleAdmin:   user.AdminRoles,
	roleTeacher: user.TeacherRoles,
	roleStudent: user.StudentRoles,
}

type newUserArgs struct {
	username  string
	email     string
	name      string
	role      string
	studentID string
	password  string
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, args newUserArgs) (user.User, error) {
	roles, ok := cliRoles[args.role]
	if !ok {
		return user.User{}, fmt.Errorf("unknown role %q", args.role)
	}
	if args.role == roleStudent && args.studentID == "" {
		return user.User{}, fmt.Errorf("students need a -studentid")
	}

	uname := core.CleanString(args.username, true /* lower */)
	email := core.CleanString(args.email, true /* lower */)
	now := time.Now().UTC()

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}})
	if err != nil {
		if err != user.ErrNotFound {
			return user.User{}, err
		}
		usr = user.User{
			Username:  uname,
			Email:     email,
			CreatedAt: now,
		}
	}
	if name := core.CleanString(args.name); name != "" {
		usr.Name = name
	}
	if usr.Name == "" {
		usr.Name = uname
	}
	usr.FirstName, usr.LastName = usr.SplitName()
	usr.Roles = roles
	usr.UpdatedAt = now
	usr.SetActive(true)
	if err := usr.SetPassword(args.password); err != nil {
		return user.User{}, err
	}
	if usr, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return user.User{}, err
	}

	if args.role == roleStudent {
		_, err = cli.usrRepo.SaveStudentProfile(ctx, user.StudentProfile{
			UserID:    usr.ID,
			StudentID: core.CleanString(args.studentID),
			YearLevel: user.YearFirst,
		})
		if err != nil {
			return user.User{}, err
		}
	}
	return usr, nil
}
