// Package dummydb provides in-memory repositories for tests: same contracts
// as the SQL repositories, no database required.
package dummydb

import (
	"sync"

	"github.com/trezcool/edusense/core/announcement"
	"github.com/trezcool/edusense/core/assignment"
	"github.com/trezcool/edusense/core/attendance"
	"github.com/trezcool/edusense/core/subject"
	"github.com/trezcool/edusense/core/user"
)

type (
	DB struct {
		user         *userTable
		subject      *subjectTable
		attendance   *attendanceTable
		assignment   *assignmentTable
		announcement *announcementTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	subjectTable struct {
		sync.RWMutex
		table map[string]*subject.Subject
	}

	attendanceTable struct {
		sync.RWMutex
		table map[string]*attendance.Event
		byKey map[string]string // (student|subject|day) -> event ID
	}

	assignmentTable struct {
		sync.RWMutex
		table       map[string]*assignment.Assignment
		submissions map[string]*assignment.Submission
		subByKey    map[string]string // (assignment|student) -> submission ID
	}

	announcementTable struct {
		sync.RWMutex
		table map[string]*announcement.Announcement
		notes map[string]*announcement.Note
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		subject: &subjectTable{table: make(map[string]*subject.Subject)},
		attendance: &attendanceTable{
			table: make(map[string]*attendance.Event),
			byKey: make(map[string]string),
		},
		assignment: &assignmentTable{
			table:       make(map[string]*assignment.Assignment),
			submissions: make(map[string]*assignment.Submission),
			subByKey:    make(map[string]string),
		},
		announcement: &announcementTable{
			table: make(map[string]*announcement.Announcement),
			notes: make(map[string]*announcement.Note),
		},
	}
	return db, nil
}
