package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/pkg/errors"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/faculty"
	"github.com/kahero/campushub/core/student"
	dummydb "github.com/kahero/campushub/storage/database/dummy"
)

var stdRepo student.Repository

func setup(t *testing.T) *commandLine {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	stdRepo = dummydb.NewStudentRepository(db)

	return &commandLine{
		stdSvc: student.NewService(dummydb.NewConn(), stdRepo, nil, &core.Config{}),
		facSvc: faculty.NewService(dummydb.NewFacultyRepository(db)),
	}
}

func createStudent(t *testing.T, usn, email string, score core.Score) student.Student {
	std := student.Student{
		USN:         usn,
		FirstName:   "Asha",
		LastName:    "Rao",
		Email:       email,
		SocialScore: score,
	}
	std.SetActive(true)
	if err := std.SetPassword("initial-password"); err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	std, err := stdRepo.CreateStudent(context.Background(), std)
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return std
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
	extra   interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(_ *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "down", "redo", "reset", "status", "version", "fix": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s requires a VERSION argument", command)
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	std := createStudent(t, "1ab20cs001", "asha@test.test", 10000)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "usn but no password", args: []string{"resetpassword", "-usn", std.USN}, wantErr: errHelp},
		{name: "student not found", args: []string{"resetpassword", "-usn", "lol"}, extra: extra{pwd: "lol"}, wantErr: student.ErrNotFound},
		{name: "reset with usn", args: []string{"resetpassword", "-usn", std.USN}, extra: extra{pwd: "new-password-1"}},
		{name: "reset with email", args: []string{"resetpassword", "-usn", std.Email}, extra: extra{pwd: "new-password-2"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := stdRepo.GetStudent(context.Background(), student.GetFilter{ID: std.ID})
				if err != nil {
					t.Fatalf("GetStudent() failed, %v", err)
				}
				if bytes.Equal(refreshed.PasswordHash, std.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if errors.Cause(err) != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_adjustScore(t *testing.T) {
	cli := setup(t)

	std := createStudent(t, "1ab20cs002", "kiran@test.test", 9500)

	tests := []cliTest{
		{name: "no args", args: []string{"adjustscore"}, wantErr: errHelp},
		{name: "missing remark", args: []string{"adjustscore", "-usn", std.USN, "-score", "80.00"}, wantErr: errHelp},
		{name: "student not found", args: []string{"adjustscore", "-usn", "lol", "-score", "80.00", "-remark", "review"}, wantErr: student.ErrNotFound},
		{name: "adjust", args: []string{"adjustscore", "-usn", std.USN, "-score", "80.00", "-remark", "disciplinary review"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := stdRepo.GetStudent(context.Background(), student.GetFilter{ID: std.ID})
				if err != nil {
					t.Fatalf("GetStudent() failed, %v", err)
				}
				if refreshed.SocialScore != 8000 {
					t.Errorf("SocialScore = %s, want 80.00", refreshed.SocialScore)
				}
			} else if errors.Cause(err) != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
