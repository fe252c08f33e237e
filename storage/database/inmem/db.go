// Package inmemdb keeps the repositories in memory for the unit tests.
package inmemdb

import (
	"sync"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/roster"
	"github.com/trezcool/mahudhurio/core/user"
)

type (
	DB struct {
		user         *userTable
		roster       *rosterTables
		attendance   *attendanceTable
		notification *notificationTable
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	rosterTables struct {
		classes  map[string]*roster.Class
		students map[string]*roster.Student
		settings map[string]*roster.Settings
		mutex    sync.RWMutex
	}

	attendanceTable struct {
		table map[string]*attendance.Record
		byKey map[recordKey]string // {(student, date): record id}
		mutex sync.RWMutex
	}

	notificationTable struct {
		table map[string]*notification.Notification
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		roster: &rosterTables{
			classes:  make(map[string]*roster.Class),
			students: make(map[string]*roster.Student),
			settings: make(map[string]*roster.Settings),
		},
		attendance: &attendanceTable{
			table: make(map[string]*attendance.Record),
			byKey: make(map[recordKey]string),
		},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
	}
}
