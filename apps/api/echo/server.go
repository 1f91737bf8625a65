package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/analytics"
	"github.com/spist/campus/core/assessment"
	"github.com/spist/campus/core/calendar"
	"github.com/spist/campus/core/course"
	"github.com/spist/campus/core/docimport"
	"github.com/spist/campus/core/notification"
	"github.com/spist/campus/core/user"
	"github.com/spist/campus/services/realtime"
)

// ServerDeps holds everything the API handlers need.
type ServerDeps struct {
	Conf           *core.Config
	Logger         core.Logger
	Validate       *validator.Validate
	Translator     ut.Translator
	Cache          core.Cache
	Hub            *realtime.Hub
	DisableReqLogs bool

	UserSvc       user.ServiceInterface
	CourseSvc     course.ServiceInterface
	AssessmentSvc assessment.ServiceInterface
	ImportSvc     docimport.ServiceInterface
	CalendarSvc   calendar.ServiceInterface
	NotifSvc      notification.ServiceInterface
	AnalyticsSvc  analytics.ServiceInterface
}

type Server struct {
	deps     ServerDeps
	app      *echo.Echo
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: conf.Server.AllowOrigins}))
	s.app.Use(middleware.BodyLimit(bodyLimit(conf.Storage.MaxUploadSize)))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)
	auth := newAuthenticator(s.deps.UserSvc, s.deps.Cache)
	activity := newActivityLogger(s.deps.AnalyticsSvc)

	registerUserAPI(v1, jwt, auth, activity, s.deps.UserSvc, s.deps.Validate)
	registerCourseAPI(v1, jwt, auth, activity, s.deps.CourseSvc, s.deps.Validate)
	registerAssessmentAPI(v1, jwt, auth, activity, s.deps.AssessmentSvc, s.deps.Validate)
	registerImportAPI(v1, jwt, auth, s.deps.ImportSvc, s.deps.Validate, conf.Storage.MaxUploadSize)
	registerCalendarAPI(v1, jwt, auth, s.deps.CalendarSvc, s.deps.Validate)
	registerNotificationAPI(v1, jwt, auth, s.deps.NotifSvc, s.deps.Hub, s.deps.Validate)
	registerAnalyticsAPI(v1, jwt, auth, s.deps.AnalyticsSvc)
}

// Start blocks until the server stops; errors other than a closed server are sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

// bodyLimit leaves room for the multipart envelope around the largest accepted upload.
func bodyLimit(maxUpload int64) string {
	const mb = 1 << 20
	if maxUpload <= 0 {
		maxUpload = 10 * mb
	}
	return strconv.FormatInt((maxUpload+mb-1)/mb+1, 10) + "M"
}
