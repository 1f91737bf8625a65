package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/spist/campus/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.FirstName, usr.LastName = usr.SplitName()
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateStudent creates an active student along with their profile.
func CreateStudent(t *testing.T, repo user.Repository, name, uname, studentID string, yearLevel int) user.User {
	t.Helper()
	usr := CreateUser(t, repo, name, uname, uname+"@spist.edu", "", []string{user.RoleStudent}, true)
	_, err := repo.SaveStudentProfile(context.Background(), user.StudentProfile{
		UserID:    usr.ID,
		StudentID: studentID,
		YearLevel: yearLevel,
	})
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return usr
}
