package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/redland-cl/registro-escolar/core"
	"github.com/redland-cl/registro-escolar/core/registro"
	"github.com/redland-cl/registro-escolar/core/report"
	"github.com/redland-cl/registro-escolar/core/user"
)

type (
	Options struct {
		Addr           string
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		UserSvc        *user.Service
		RegistroSvc    *registro.Service
		ReportSvc      *report.Service
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		opts  *Options
		app   *echo.Echo
		errCh chan error
		sigCh chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:  opts,
		app:   echo.New(),
		errCh: make(chan error, 1),
		sigCh: make(chan os.Signal, 1),
	}
	signal.Notify(s.sigCh, syscall.SIGINT, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     conf.CORSAllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	jwt := middleware.JWTWithConfig(newJWTConfig(conf))

	api := s.app.Group("/api")
	api.GET("", home)

	registerAuthAPI(api, jwt, s.opts)
	registerUserAPI(api, jwt, s.opts)
	registerRegistroAPI(api, jwt, s.opts)
	registerReportAPI(api, jwt, s.opts)
}

func (s *server) Start() {
	if err := s.app.Start(s.opts.Addr); err != nil && err != http.ErrServerClosed {
		s.errCh <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error { return s.app.Shutdown(ctx) }
func (s *server) Close() error                       { return s.app.Close() }
func (s *server) Errors() <-chan error               { return s.errCh }
func (s *server) ShutdownSignal() <-chan os.Signal   { return s.sigCh }

func (s *server) signalShutdown() {
	s.sigCh <- syscall.SIGTERM
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{
		"message": "Registro Escolar API - Sistema funcionando correctamente",
	})
}
