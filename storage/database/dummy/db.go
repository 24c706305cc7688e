// Package dummydb provides an in-memory storage backend for tests and
// local development. Writes apply immediately, so transactions are no-ops.
package dummydb

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/attendance"
	"github.com/kahero/campushub/core/club"
	"github.com/kahero/campushub/core/event"
	"github.com/kahero/campushub/core/faculty"
	"github.com/kahero/campushub/core/student"
)

type (
	DB struct {
		students      *studentTable
		scoreLogs     *scoreLogTable
		faculty       *facultyTable
		clubs         *clubTable
		roles         *roleTable
		members       *memberTable
		events        *eventTable
		registrations *registrationTable
		editHistory   *editHistoryTable
		records       *recordTable
		reports       *reportTable
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student
	}
	scoreLogTable struct {
		sync.RWMutex
		entries []student.ScoreLogEntry // append-only
	}
	facultyTable struct {
		sync.RWMutex
		table map[string]*faculty.Faculty
	}
	clubTable struct {
		sync.RWMutex
		table map[string]*club.Club
	}
	roleTable struct {
		sync.RWMutex
		table map[string]*club.Role
	}
	memberTable struct {
		sync.RWMutex
		table map[string]*club.Member
	}
	eventTable struct {
		sync.RWMutex
		table map[string]*event.Event
	}
	registrationTable struct {
		sync.RWMutex
		table map[string]*event.Registration
	}
	editHistoryTable struct {
		sync.RWMutex
		entries []event.EditHistoryEntry // append-only
	}
	recordTable struct {
		sync.RWMutex
		table map[string]*attendance.Record
	}
	reportTable struct {
		sync.RWMutex
		reports []attendance.Report // append-only
	}
)

func Open() (*DB, error) {
	db := &DB{
		students:      &studentTable{table: make(map[string]*student.Student)},
		scoreLogs:     &scoreLogTable{},
		faculty:       &facultyTable{table: make(map[string]*faculty.Faculty)},
		clubs:         &clubTable{table: make(map[string]*club.Club)},
		roles:         &roleTable{table: make(map[string]*club.Role)},
		members:       &memberTable{table: make(map[string]*club.Member)},
		events:        &eventTable{table: make(map[string]*event.Event)},
		registrations: &registrationTable{table: make(map[string]*event.Registration)},
		editHistory:   &editHistoryTable{},
		records:       &recordTable{table: make(map[string]*attendance.Record)},
		reports:       &reportTable{},
	}
	db.seedRoles()
	return db, nil
}

// seedRoles mirrors the default club roles created by migration.
func (db *DB) seedRoles() {
	for _, role := range defaultRoles() {
		role := role
		role.ID = newID()
		db.roles.table[role.ID] = &role
	}
}

func defaultRoles() []club.Role {
	return []club.Role{
		{
			Name:              "President",
			Description:       "Full control over club events and membership",
			CanCreateEvents:   true,
			CanEditEvents:     true,
			CanDeleteEvents:   true,
			CanStartEvents:    true,
			CanEndEvents:      true,
			CanMarkAttendance: true,
			CanAddMembers:     true,
			CanRemoveMembers:  true,
			CanViewReports:    true,
		},
		{
			Name:              "Vice President",
			Description:       "Runs events and manages members",
			CanCreateEvents:   true,
			CanEditEvents:     true,
			CanStartEvents:    true,
			CanEndEvents:      true,
			CanMarkAttendance: true,
			CanAddMembers:     true,
			CanViewReports:    true,
		},
		{
			Name:              "Event Coordinator",
			Description:       "Runs events and marks attendance",
			CanCreateEvents:   true,
			CanEditEvents:     true,
			CanStartEvents:    true,
			CanEndEvents:      true,
			CanMarkAttendance: true,
			CanViewReports:    true,
		},
		{
			Name:        "Member",
			Description: "Regular club member",
		},
	}
}

func newID() string {
	return uuid.New().String()
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Conn satisfies core.DB for services that wrap work in core.Atomic.
// The embedded executor is never called by the dummy repositories.
type Conn struct {
	core.DBExecutor
}

var _ core.DB = (*Conn)(nil) // interface compliance check

func NewConn() core.DB {
	return Conn{}
}

func (Conn) BeginTx(context.Context, *sql.TxOptions) (core.DBTransactor, error) {
	return noopTx{}, nil
}

type noopTx struct {
	core.DBExecutor
}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }
