package main

import (
	"log"
	"os"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/faculty"
	"github.com/kahero/campushub/core/student"
	emailsvc "github.com/kahero/campushub/services/email"
	"github.com/kahero/campushub/storage/database"
	sqlxrepos "github.com/kahero/campushub/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(err)
	}
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())
	appDB := database.Wrap(db)

	// start CLI
	cli := commandLine{
		db:     db,
		stdSvc: student.NewService(appDB, sqlxrepos.NewStudentRepository(appDB), emailsvc.NewConsoleService(conf), conf),
		facSvc: faculty.NewService(sqlxrepos.NewFacultyRepository(appDB)),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
