// app/echoServer/middleware.go
package echoServer

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"bookshare/app/echoServer/jwtx"
	"bookshare/app/echoServer/notify"
)

func RegisterMiddlewares(e *echo.Echo, log *slog.Logger) {

	e.Use(middleware.Recover())

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))

	e.Use(Slog(log))
}

func Slog(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			lat := time.Since(start).Milliseconds()

			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			log.Info("http",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", c.Response().Status,
				"latency_ms", lat,
				"req_id", rid,
				"user_id", jwtx.UserID(c),
				"ip", c.RealIP(),
				"ua", c.Request().UserAgent(),
			)
			return err
		}
	}
}

// RequireUser copies the subject of the verified token into the context as
// "user_id" and its role as "role".
func RequireUser(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, err := jwtx.UserIDFromContext(c)
			if err != nil {
				log.Warn("auth rejected", "err", err, "req_id", c.Response().Header().Get(echo.HeaderXRequestID), "ip", c.RealIP())
				return notify.Unauthorized(c)
			}
			c.Set("user_id", uid)
			c.Set("role", jwtx.RoleFromContext(c))
			return next(c)
		}
	}
}

// WriteLimiter throttles non-GET requests per user.
func WriteLimiter(perSecond float64) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     max(int(perSecond)*2, 1),
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool { return c.Request().Method == http.MethodGet },
		Store:   store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if uid := jwtx.UserID(c); uid != "" {
				return uid, nil
			}
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.JSON(http.StatusTooManyRequests, notify.Envelope{
				Message: "too many requests", Severity: notify.SeverityError, Code: "RATE_LIMITED",
			})
		},
	})
}
