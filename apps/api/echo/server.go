package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/attendance"
	"github.com/spimentel1201/EduMF-sub001/core/course"
	"github.com/spimentel1201/EduMF-sub001/core/dashboard"
	"github.com/spimentel1201/EduMF-sub001/core/user"
)

type (
	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		UserSvc       *user.Service
		CourseSvc     *course.Service
		AttendanceSvc *attendance.Service
		DashboardSvc  *dashboard.Service
		Throttler     core.Throttler
		Validate      *validator.Validate
		Translator    ut.Translator
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *auth
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "deps.Conf"),
		vala.IsNotNil(deps.Logger, "deps.Logger"),
		vala.IsNotNil(deps.UserSvc, "deps.UserSvc"),
		vala.IsNotNil(deps.CourseSvc, "deps.CourseSvc"),
		vala.IsNotNil(deps.AttendanceSvc, "deps.AttendanceSvc"),
		vala.IsNotNil(deps.DashboardSvc, "deps.DashboardSvc"),
		vala.IsNotNil(deps.Throttler, "deps.Throttler"),
		vala.IsNotNil(deps.Validate, "deps.Validate"),
		vala.IsNotNil(deps.Translator, "deps.Translator"),
	).CheckAndPanic()

	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuth(deps.Conf, deps.UserSvc),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	g := s.app.Group("/api")
	jwt := s.auth.middleware()

	registerAuthAPI(g, s.auth, s.deps.Throttler, s.deps.Validate, s.deps.Logger)
	registerUserAPI(g, jwt, s.auth, s.deps.CourseSvc, s.deps.Validate, s.deps.Translator, s.deps.Logger)
	registerCourseAPI(g, jwt, s.deps.CourseSvc, s.deps.Validate)
	registerAttendanceAPI(g, jwt, s.auth, s.deps.AttendanceSvc, s.deps.Validate)
	registerDashboardAPI(g, jwt, s.deps.DashboardSvc)
}

// Start listens on the configured address; listen errors are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// Token returns a signed JWT for usr, as issued on login.
func (s *Server) Token(usr user.User) (string, error) {
	return s.auth.GenerateToken(s.auth.UserClaims(usr))
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to EduMF API!")
}
