package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/kahero/campushub/core/faculty"
	"github.com/kahero/campushub/core/student"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *sql.DB
	stdSvc student.Service
	facSvc faculty.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a database migration command (up, down, status, ...)")
	fmt.Println("  addfaculty -code CODE -email EMAIL [-firstname NAME] [-lastname NAME] - create or update a faculty account")
	fmt.Println("  resetpassword -usn USN|EMAIL - reset a student's password")
	fmt.Println("  adjustscore -usn USN|EMAIL -score SCORE -remark REMARK - set a student's social score")
	fmt.Println("  recomputepoints -usn USN|EMAIL - rebuild a student's activity point total from attendance")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addFacultyCmd := flag.NewFlagSet("addfaculty", flag.ExitOnError)
	addFacultyCode := addFacultyCmd.String("code", "", "The staff code. The password will be prompted next.")
	addFacultyEmail := addFacultyCmd.String("email", "", "The faculty email address.")
	addFacultyFirstName := addFacultyCmd.String("firstname", "", "The first name.")
	addFacultyLastName := addFacultyCmd.String("lastname", "", "The last name.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUSN := resetPasswordCmd.String("usn", "", "The student's USN or email. The password will be prompted next.")

	adjustScoreCmd := flag.NewFlagSet("adjustscore", flag.ExitOnError)
	adjustScoreUSN := adjustScoreCmd.String("usn", "", "The student's USN or email.")
	adjustScoreValue := adjustScoreCmd.String("score", "", "The new social score, e.g. 97.50.")
	adjustScoreRemark := adjustScoreCmd.String("remark", "", "The reason for the adjustment.")

	recomputeCmd := flag.NewFlagSet("recomputepoints", flag.ExitOnError)
	recomputeUSN := recomputeCmd.String("usn", "", "The student's USN or email.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addfaculty":
		if err := addFacultyCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addFacultyCode == "" || *addFacultyEmail == "" {
			addFacultyCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			if err == errHelp {
				addFacultyCmd.Usage()
			}
			return err
		}
		return cli.addFaculty(*addFacultyCode, *addFacultyEmail, *addFacultyFirstName, *addFacultyLastName, pwd)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUSN == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			if err == errHelp {
				resetPasswordCmd.Usage()
			}
			return err
		}
		return cli.resetPassword(*resetPasswordUSN, pwd)
	case "adjustscore":
		if err := adjustScoreCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *adjustScoreUSN == "" || *adjustScoreValue == "" || *adjustScoreRemark == "" {
			adjustScoreCmd.Usage()
			return errHelp
		}
		return cli.adjustScore(*adjustScoreUSN, *adjustScoreValue, *adjustScoreRemark)
	case "recomputepoints":
		if err := recomputeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *recomputeUSN == "" {
			recomputeCmd.Usage()
			return errHelp
		}
		return cli.recomputePoints(*recomputeUSN)
	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errHelp
	}
	return string(pwd), nil
}
