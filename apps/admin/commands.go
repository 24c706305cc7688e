package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/faculty"
	"github.com/kahero/campushub/core/student"
	"github.com/kahero/campushub/storage/database"
)

var gooseRunFunc = database.RunGoose // mockable

// migrate passes the goose command through to the embedded migrations.
func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(cli.db, args[0], args[1:]...)
}

// addFaculty creates a faculty account, or resets the password of an
// existing one with the same staff code.
func (cli *commandLine) addFaculty(code, email, firstName, lastName, pwd string) error {
	ctx := context.Background()

	fac, err := cli.facSvc.GetByCode(ctx, code)
	if err == nil {
		_, err = cli.facSvc.Update(ctx, fac.ID, faculty.UpdateFaculty{
			Password:        pwd,
			PasswordConfirm: pwd,
		})
		if err != nil {
			return errors.Wrap(err, "updating faculty")
		}
		fmt.Printf("password updated for faculty %s\n", fac.Code)
		return nil
	}
	if errors.Cause(err) != faculty.ErrNotFound {
		return errors.Wrap(err, "looking up faculty")
	}

	if firstName == "" {
		firstName = "Admin"
	}
	if lastName == "" {
		lastName = "Staff"
	}
	fac, err = cli.facSvc.Create(ctx, faculty.NewFaculty{
		Code:            code,
		FirstName:       firstName,
		LastName:        lastName,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
	})
	if err != nil {
		return errors.Wrap(err, "creating faculty")
	}
	fmt.Printf("faculty %s created\n", fac.Code)
	return nil
}

func (cli *commandLine) resetPassword(usn, pwd string) error {
	ctx := context.Background()

	std, err := cli.stdSvc.GetByUSNOrEmail(ctx, usn)
	if err != nil {
		return errors.Wrap(err, "looking up student")
	}
	if _, err = cli.stdSvc.Update(ctx, std.ID, student.UpdateStudent{
		Password:        pwd,
		PasswordConfirm: pwd,
	}); err != nil {
		return errors.Wrap(err, "updating student")
	}
	fmt.Printf("password updated for student %s\n", std.USN)
	return nil
}

func (cli *commandLine) adjustScore(usn, score, remark string) error {
	ctx := context.Background()

	newScore, err := core.ParseScore(score)
	if err != nil {
		return errors.Wrapf(err, "parsing score %q", score)
	}

	std, err := cli.stdSvc.GetByUSNOrEmail(ctx, usn)
	if err != nil {
		return errors.Wrap(err, "looking up student")
	}
	entry, err := cli.stdSvc.AdjustScore(ctx, std.ID, student.ManualAdjustment{
		NewScore: newScore,
		Remark:   remark,
	})
	if err != nil {
		return errors.Wrap(err, "adjusting score")
	}
	fmt.Printf("score for student %s set to %s (delta %s)\n", std.USN, entry.NewScore, entry.Delta)
	return nil
}

func (cli *commandLine) recomputePoints(usn string) error {
	ctx := context.Background()

	std, err := cli.stdSvc.GetByUSNOrEmail(ctx, usn)
	if err != nil {
		return errors.Wrap(err, "looking up student")
	}
	total, err := cli.stdSvc.RecomputeActivityPoints(ctx, std.ID)
	if err != nil {
		return errors.Wrap(err, "recomputing activity points")
	}
	fmt.Printf("activity points for student %s recomputed: %d\n", std.USN, total)
	return nil
}
