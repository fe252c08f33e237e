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
	"go.uber.org/dig"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/roster"
	"github.com/trezcool/mahudhurio/core/user"
	metricsvc "github.com/trezcool/mahudhurio/services/metrics"
)

type (
	// ServerDeps holds what the API needs. It doubles as a dig parameter object.
	ServerDeps struct {
		dig.In

		Conf            *core.Config
		Logger          core.Logger
		Validate        *validator.Validate
		Translator      ut.Translator
		UserSvc         user.ServiceInterface
		RosterSvc       *roster.Service
		AttendanceSvc   *attendance.Service
		NotificationSvc *notification.Service
		Metrics         *metricsvc.Metrics `optional:"true"`
	}

	Server struct {
		app      *echo.Echo
		conf     *core.Config
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "conf"),
		vala.IsNotNil(deps.Logger, "logger"),
		vala.IsNotNil(deps.Validate, "validate"),
		vala.IsNotNil(deps.Translator, "translator"),
		vala.IsNotNil(deps.UserSvc, "userSvc"),
		vala.IsNotNil(deps.RosterSvc, "rosterSvc"),
		vala.IsNotNil(deps.AttendanceSvc, "attendanceSvc"),
		vala.IsNotNil(deps.NotificationSvc, "notificationSvc"),
	).CheckAndPanic()

	srv := &Server{
		app:      echo.New(),
		conf:     deps.Conf,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(srv.shutdown, os.Interrupt, syscall.SIGTERM)

	srv.setup(deps)
	return srv
}

func (srv *Server) setup(deps ServerDeps) {
	app := srv.app
	conf := deps.Conf

	app.HideBanner = true
	app.Debug = conf.Debug
	app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, srv.SignalShutdown)

	app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: conf.Server.CORSOrigins}))

	app.GET("/", home)

	auth := newAuthenticator(conf, deps.UserSvc, deps.RosterSvc)
	v1 := app.Group("/v1")
	jwt := auth.middleware()
	ident := auth.identityMiddleware()

	registerUserAPI(v1, jwt, auth, deps.UserSvc, deps.Validate)
	registerRosterAPI(v1, jwt, ident, deps.RosterSvc, deps.Validate)
	registerAttendanceAPI(v1, jwt, ident, deps.AttendanceSvc, deps.Metrics)
	registerReportAPI(v1, jwt, ident, deps.AttendanceSvc)
	registerNotificationAPI(v1, jwt, deps.NotificationSvc)
}

// Start blocks until the server stops; startup failures are sent on Errors.
func (srv *Server) Start() {
	if err := srv.app.Start(srv.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		srv.errors <- err
	}
}

func (srv *Server) Errors() <-chan error {
	return srv.errors
}

func (srv *Server) ShutdownSignal() <-chan os.Signal {
	return srv.shutdown
}

// SignalShutdown asks the main goroutine to stop the server gracefully.
func (srv *Server) SignalShutdown() {
	select {
	case srv.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (srv *Server) Shutdown(ctx context.Context) error {
	signal.Stop(srv.shutdown)
	return srv.app.Shutdown(ctx)
}

func (srv *Server) Close() error {
	return srv.app.Close()
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	srv.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Mahudhurio API!")
}
