package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/spimentel1201/EduMF-sub001/apps/api/echo"
	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/attendance"
	"github.com/spimentel1201/EduMF-sub001/core/course"
	"github.com/spimentel1201/EduMF-sub001/core/dashboard"
	"github.com/spimentel1201/EduMF-sub001/core/user"
	emailsvc "github.com/spimentel1201/EduMF-sub001/services/email"
	logsvc "github.com/spimentel1201/EduMF-sub001/services/logger"
	throttlesvc "github.com/spimentel1201/EduMF-sub001/services/throttle"
	"github.com/spimentel1201/EduMF-sub001/storage/database"
	sqlxrepos "github.com/spimentel1201/EduMF-sub001/storage/database/sqlx"
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

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up login throttling
	throttler, closeThrottler, err := setUpThrottler(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up login throttling: %v", err), err)
	}
	defer closeThrottler()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), conf)
	crsSvc := course.NewService(sqlxrepos.NewCourseRepository(db), usrSvc)
	attSvc := attendance.NewService(sqlxrepos.NewAttendanceRepository(db), usrSvc, crsSvc, mailSvc, logger)
	dashSvc := dashboard.NewService(sqlxrepos.NewDashboardRepository(db))

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger)

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			UserSvc:       usrSvc,
			CourseSvc:     crsSvc,
			AttendanceSvc: attSvc,
			DashboardSvc:  dashSvc,
			Throttler:     throttler,
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

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// setUpThrottler shares login attempts through Redis when configured, in memory otherwise.
func setUpThrottler(conf *core.Config) (core.Throttler, func(), error) {
	if conf.Redis.Addr == "" {
		return throttlesvc.NewMemoryThrottler(conf.LoginMaxAttempts, conf.LoginAttemptWindow), func() {}, nil
	}
	throttler, err := throttlesvc.NewRedisThrottler(context.Background(), conf)
	if err != nil {
		return nil, nil, err
	}
	return throttler, func() { _ = throttler.Close() }, nil
}
