package echoapi

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/checkout"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/enrollment"
	"github.com/trezcool/academia/core/identity"
	"github.com/trezcool/academia/core/like"
	"github.com/trezcool/academia/core/payment"
	"github.com/trezcool/academia/core/student"
)

type (
	Options struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		CourseSvc     *course.Service
		StudentSvc    *student.Service
		PaymentSvc    *payment.Service
		EnrollmentSvc *enrollment.Service
		LikeSvc       *like.Service
		CheckoutSvc   *checkout.Service
		Provider      identity.Provider
	}

	Server struct {
		opts     *Options
		app      *echo.Echo
		auth     *authenticator
		shutdown chan os.Signal
		errors   chan error

		baseCtx    context.Context // parent of every request context
		cancelBase context.CancelFunc
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(opts *Options) *Server {
	s := &Server{
		opts:     opts,
		app:      echo.New(),
		auth:     newAuthenticator(opts.Conf),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	s.app.Server.BaseContext = func(net.Listener) context.Context { return s.baseCtx }
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.auth, s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", home)

	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)
	cookies := sessions.NewCookieStore([]byte(conf.SecretKey))

	registerCourseAPI(s.app, s.opts.CourseSvc, s.opts.Logger)

	v1 := s.app.Group("/v1")
	registerAuthAPI(v1, jwt, s.auth, cookies, s.opts.Provider, s.opts.StudentSvc)
	registerCoursesAPI(v1, s.opts.CourseSvc)
	registerLikeAPI(v1, jwt, s.auth, s.opts.LikeSvc)
	registerEnrollmentAPI(v1, jwt, s.auth, s.opts.EnrollmentSvc, s.opts.CheckoutSvc, s.opts.Validate)
	registerPaymentAPI(v1, jwt, s.auth, s.opts.PaymentSvc)
}

// Start listens until the server is shut down. Listening errors are sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.opts.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
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
	default:
	}
}

// Shutdown ends live streams, then stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	s.cancelBase()
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	s.cancelBase()
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Academia API!")
}
