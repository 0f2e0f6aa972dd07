package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trainerhub/trainerhub/internal/metrics"
	"github.com/trainerhub/trainerhub/internal/plugins/activity"
	"github.com/trainerhub/trainerhub/internal/plugins/auth"
)

// healthTimeout bounds each dependency ping in /healthz.
const healthTimeout = 2 * time.Second

// RegisterRoutes sets up all application routes. Public routes are
// registered directly; each plugin registers its own.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// --- Public Routes ---

	e.GET("/", func(c echo.Context) error {
		if auth.GetSession(c) == nil {
			return c.Redirect(http.StatusSeeOther, "/login")
		}
		return c.Redirect(http.StatusSeeOther, "/logger/")
	})

	e.GET("/healthz", a.health)

	if a.Config.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	// --- Plugin Routes ---

	auth.RegisterRoutes(e, auth.NewHandler(a.authService, int(a.Config.Auth.SessionTTL.Seconds())))

	activity.RegisterRoutes(e, activity.NewHandler(a.Activity, auth.GetEmail), auth.RequireAuth())
}

// health pings MariaDB and Redis (GET /healthz).
func (a *App) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	checks := map[string]string{"database": "ok", "redis": "ok"}
	status := http.StatusOK

	if err := a.DB.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	body := map[string]any{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "unavailable"
	}
	return c.JSON(status, body)
}
