package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register /debug/pprof handlers
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/kahero/campushub/apps/api/echo"
	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/assistant"
	"github.com/kahero/campushub/core/attendance"
	"github.com/kahero/campushub/core/club"
	"github.com/kahero/campushub/core/event"
	"github.com/kahero/campushub/core/faculty"
	"github.com/kahero/campushub/core/student"
	emailsvc "github.com/kahero/campushub/services/email"
	exportsvc "github.com/kahero/campushub/services/export"
	logsvc "github.com/kahero/campushub/services/logger"
	"github.com/kahero/campushub/storage/database"
	sqlxrepos "github.com/kahero/campushub/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()
	appDB := database.Wrap(db)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	stdSvc := student.NewService(appDB, sqlxrepos.NewStudentRepository(appDB), mailSvc, conf)
	facSvc := faculty.NewService(sqlxrepos.NewFacultyRepository(appDB))
	clubSvc := club.NewService(sqlxrepos.NewClubRepository(appDB))
	evtSvc := event.NewService(sqlxrepos.NewEventRepository(appDB), stdSvc)
	attSvc := attendance.NewService(
		appDB, sqlxrepos.NewAttendanceRepository(appDB),
		evtSvc, stdSvc, clubSvc, facSvc,
		mailSvc, exportsvc.NewWorkbookExporter(), logger, conf,
	)
	assistantSvc := assistant.NewService(assistant.NewClient(conf.Assistant), stdSvc, evtSvc, clubSvc, facSvc, attSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	student.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	student.LoadCommonPasswords(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			StudentSvc:    stdSvc,
			FacultySvc:    facSvc,
			ClubSvc:       clubSvc,
			EventSvc:      evtSvc,
			AttendanceSvc: attSvc,
			AssistantSvc:  assistantSvc,
			Validate:      validate,
			Translator:    translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
