package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/roster"
	"github.com/trezcool/mahudhurio/core/user"
)

// SchoolID is the school seeded by the migrations and configured by default.
const SchoolID = "00000000-0000-0000-0000-000000000001"

// NopLogger drops every message.
type NopLogger struct{}

var _ core.Logger = NopLogger{} // interface compliance check

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

// NewConfig returns the default configuration in test mode, in UTC.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Timezone = time.UTC
	conf.MaxRangeDays = 366
	conf.SchoolID = SchoolID
	return conf
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        core.NewID(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
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

func CreateClass(t *testing.T, repo roster.Repository, name string, teacherID ...string) roster.Class {
	now := time.Now().UTC()
	class := roster.Class{
		ID:        core.NewID(),
		Name:      name,
		Grade:     name,
		SchoolID:  SchoolID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(teacherID) > 0 {
		class.TeacherID = &teacherID[0]
	}
	class, err := repo.CreateClass(context.Background(), class)
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return class
}

func CreateStudent(t *testing.T, repo roster.Repository, classID, name, rollNumber string, parentID ...string) roster.Student {
	now := time.Now().UTC()
	student := roster.Student{
		ID:         core.NewID(),
		Name:       name,
		RollNumber: rollNumber,
		ClassID:    classID,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if len(parentID) > 0 {
		student.ParentID = &parentID[0]
	}
	student, err := repo.CreateStudent(context.Background(), student)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return student
}
