package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"newsinsight/internal/auth"
	"newsinsight/internal/dashboard"
	"newsinsight/internal/metrics"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Auth      *auth.Service
	Dashboard *dashboard.Service
	Health    Pinger
	Metrics   *metrics.Metrics
}

type Config struct {
	AuthRatePerSec    float64
	AuthBurst         int
	SecureCookies     bool
	ReadHeaderTimeout time.Duration
}

// Server hosts the JSON API under /api/v1 and the HTML dashboard.
type Server struct {
	echo    *echo.Echo
	auth    *auth.Service
	dash    *dashboard.Service
	health  Pinger
	metrics *metrics.Metrics
	cfg     Config
	log     *slog.Logger
}

func New(deps Deps, cfg Config, log *slog.Logger) (*Server, error) {
	if cfg.AuthBurst <= 0 {
		cfg.AuthBurst = 1
	}

	renderer, err := newTemplateRenderer()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.Renderer = renderer

	s := &Server{
		echo:    e,
		auth:    deps.Auth,
		dash:    deps.Dashboard,
		health:  deps.Health,
		metrics: deps.Metrics,
		cfg:     cfg,
		log:     log,
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(s.requestLogger())
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.ErrorContext(c.Request().Context(), "Recovered from panic",
				"error", err,
				"stack", string(stack))
			return err
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "same-origin",
	}))

	s.routes()

	return s, nil
}

func (s *Server) routes() {
	e := s.echo
	authLimit := s.authRateLimiter()

	e.GET("/healthz", s.healthz)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	v1 := e.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/signup", s.signUp, authLimit)
	authGroup.POST("/signin", s.signIn, authLimit)
	authGroup.POST("/signout", s.signOut, s.requireSession)

	private := v1.Group("", s.requireSession)
	private.GET("/me", s.me)
	private.GET("/preferences", s.getPreferences)
	private.PUT("/preferences", s.putPreferences)
	private.GET("/feed", s.getFeed)
	private.GET("/saved", s.getSaved)
	private.POST("/articles/:id/read", s.markRead)
	private.POST("/articles/:id/save", s.toggleSaved)
	private.GET("/settings", s.getSettings)
	private.PUT("/settings", s.putSettings)

	csrf := s.csrf()
	view := []echo.MiddlewareFunc{csrf, s.requireViewSession}

	e.GET("/signin", s.viewSignIn, csrf)
	e.POST("/signin", s.formSignIn, authLimit, csrf)
	e.POST("/signup", s.formSignUp, authLimit, csrf)
	e.POST("/signout", s.formSignOut, view...)
	e.GET("/", s.viewFeed, view...)
	e.GET("/saved", s.viewSaved, view...)
	e.GET("/preferences", s.viewPreferences, view...)
	e.POST("/preferences", s.formPreferences, view...)
	e.POST("/articles/:id/read", s.formMarkRead, view...)
	e.POST("/articles/:id/save", s.formToggleSaved, view...)
	e.GET("/settings", s.viewSettings, view...)
	e.POST("/settings", s.formSettings, view...)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start blocks serving addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	s.log.Info("HTTP server is started",
		"addr", addr)

	if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) healthz(c echo.Context) error {
	if s.health != nil {
		if err := s.health.Ping(c.Request().Context()); err != nil {
			s.log.ErrorContext(c.Request().Context(), "Health check failed",
				"error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
