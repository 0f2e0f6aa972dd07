package activity

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trainerhub/trainerhub/internal/apperror"
	"github.com/trainerhub/trainerhub/internal/metrics"
	"github.com/trainerhub/trainerhub/internal/middleware"
)

// LogInteractions observes every exchange made by an authenticated
// principal. It emits a request event before the handler and, when the
// final status is below 400, a response event after it. Anonymous requests
// produce nothing. The handler's error is returned untouched and the
// exchange itself is never modified.
func LogInteractions(sink Sink, principal PrincipalResolver, clock Clock) echo.MiddlewareFunc {
	if clock == nil {
		clock = SystemClock
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := resolvePrincipal(principal, c)
			if user == "" {
				return next(c)
			}

			req := c.Request()
			ctx := req.Context()
			method, path := req.Method, req.URL.Path

			SafeEmit(ctx, sink, slog.LevelInfo,
				fmt.Sprintf("User %s - %s %s", user, method, path),
				map[string]any{
					"user":      user,
					"method":    method,
					"path":      path,
					"ip":        middleware.ForwardedIP(req),
					"timestamp": clock(),
				})
			metrics.InteractionEvents.WithLabelValues("request").Inc()

			err := next(c)

			status := exchangeStatus(c, err)
			if status < http.StatusBadRequest {
				SafeEmit(ctx, sink, slog.LevelInfo,
					fmt.Sprintf("Response - %s %s - %d", method, path, status),
					map[string]any{
						"user":        user,
						"method":      method,
						"path":        path,
						"status_code": status,
						"timestamp":   clock(),
					})
				metrics.InteractionEvents.WithLabelValues("response").Inc()
			}
			return err
		}
	}
}

// resolvePrincipal treats a panicking resolver as anonymous.
func resolvePrincipal(principal PrincipalResolver, c echo.Context) (user string) {
	if principal == nil {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("principal resolver panicked", slog.Any("panic", r))
			user = ""
		}
	}()
	return principal(c)
}

// exchangeStatus is the status the client will see. An uncommitted response
// with an error is answered later by the error handler, so the status comes
// from the error.
func exchangeStatus(c echo.Context, err error) int {
	res := c.Response()
	if res.Committed || err == nil {
		return res.Status
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
