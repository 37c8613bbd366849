// app/echoServer/middleware.go
package echoServer

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/photsathonspd1-create/bann-mae-villa-sub000/app/echoServer/jwtx"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/util/metrics"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
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
			if err != nil {
				// let echo write the response so the status below is final
				c.Error(err)
			}
			lat := time.Since(start)

			status := c.Response().Status
			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			attrs := []any{
				"method", c.Request().Method,
				"path", c.Path(),
				"status", status,
				"latency_ms", lat.Milliseconds(),
				"req_id", rid,
				"ip", c.RealIP(),
				"ua", c.Request().UserAgent(),
			}
			// admin routes carry a verified token by now
			if sub, err := jwtx.SubjectFromContext(c); err == nil {
				attrs = append(attrs, "sub", sub)
			}
			log.Info("http", attrs...)
			metrics.ObserveHTTP(c.Request().Method, c.Path(), strconv.Itoa(status), lat)
			return nil
		}
	}
}

// RequireRole rejects tokens whose role claim differs from role.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got, err := jwtx.RoleFromContext(c)
			if err != nil || got != role {
				return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
			}
			return next(c)
		}
	}
}
