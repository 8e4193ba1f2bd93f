package api

import (
	"net/http"
	"strings"
	"time"

	"newsinsight/internal/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const (
	sessionCookieName = "newsinsight_session"
	csrfCookieName    = "newsinsight_csrf"
	csrfFormField     = "_csrf"
	sessionContextKey = "session"
	rateLimiterExpiry = 3 * time.Minute
)

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/healthz" || c.Request().URL.Path == "/metrics"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ctx := c.Request().Context()
			if v.Error == nil {
				s.log.InfoContext(ctx, "Request is completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"remoteIP", v.RemoteIP,
					"latency", v.Latency)
			} else {
				s.log.WarnContext(ctx, "Request is failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"remoteIP", v.RemoteIP,
					"latency", v.Latency,
					"error", v.Error)
			}
			return nil
		},
	})
}

// authRateLimiter limits sign-in and sign-up attempts per client IP.
func (s *Server) authRateLimiter() echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(s.cfg.AuthRatePerSec),
		Burst:     s.cfg.AuthBurst,
		ExpiresIn: rateLimiterExpiry,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
	})
}

func (s *Server) csrf() echo.MiddlewareFunc {
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:" + csrfFormField,
		CookieName:     csrfCookieName,
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   s.cfg.SecureCookies,
		CookieSameSite: http.SameSiteStrictMode,
	})
}

// requireSession resolves a bearer token or the session cookie.
func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := s.auth.Authenticate(c.Request().Context(), sessionToken(c))
		if err != nil {
			return err
		}

		c.Set(sessionContextKey, session)

		return next(c)
	}
}

// requireViewSession is requireSession for HTML pages: a missing or invalid
// session sends the browser to the sign-in page.
func (s *Server) requireViewSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := s.auth.Authenticate(c.Request().Context(), sessionToken(c))
		if err != nil {
			s.clearSessionCookie(c)
			return c.Redirect(http.StatusSeeOther, "/signin")
		}

		c.Set(sessionContextKey, session)

		return next(c)
	}
}

func sessionToken(c echo.Context) string {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	if cookie, err := c.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}

	return ""
}

func sessionFrom(c echo.Context) *domain.Session {
	session, _ := c.Get(sessionContextKey).(*domain.Session)
	return session
}

func (s *Server) setSessionCookie(c echo.Context, token string, expiresAt time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
