// Package app is the application bootstrap and dependency injection root.
// It creates and holds the shared infrastructure (DB pool, Redis client,
// Echo instance, activity buffer) and wires the plugins together.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/trainerhub/trainerhub/internal/apperror"
	"github.com/trainerhub/trainerhub/internal/config"
	"github.com/trainerhub/trainerhub/internal/middleware"
	"github.com/trainerhub/trainerhub/internal/notify"
	"github.com/trainerhub/trainerhub/internal/plugins/activity"
	"github.com/trainerhub/trainerhub/internal/plugins/auth"
	"github.com/trainerhub/trainerhub/internal/templates/layouts"
	"github.com/trainerhub/trainerhub/internal/templates/pages"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	Config *config.Config

	// DB is the MariaDB pool backing the users table.
	DB *sql.DB

	// Redis holds sessions and, optionally, forwarded activity.
	Redis *redis.Client

	Echo *echo.Echo

	// Activity is the process-wide activity buffer, owned here and handed
	// to the activity handler.
	Activity *activity.Buffer

	authService auth.AuthService
	sink        activity.Sink
	forwarder   *notify.Forwarder
}

// New creates the App, its activity buffer and sink chain, and configures
// the Echo server with global middleware and error handling.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) (*App, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Trust private-network proxies so c.RealIP() sees the client address.
	middleware.TrustedProxies(e, []string{
		"127.0.0.0/8",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"fd00::/8",
	})

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Echo:   e,
	}

	sinks := activity.MultiSink{activity.NewSlogSink(slog.Default())}
	if cfg.Activity.ForwardingEnabled() {
		fwd, err := newForwarder(cfg.Activity, rdb)
		if err != nil {
			return nil, err
		}
		app.forwarder = fwd
		sinks = append(sinks, fwd)
	}
	app.sink = sinks
	app.Activity = activity.NewBuffer(cfg.Activity.MaxActivities, activity.WithSink(app.sink))

	// Shutdown does not cancel in-flight request contexts; end open
	// activity streams so they do not hold it until the timeout.
	e.Server.RegisterOnShutdown(app.Activity.CloseSubscribers)

	app.authService = auth.NewAuthService(auth.NewUserRepository(db), rdb, cfg.Auth.SessionTTL)

	middleware.LayoutInjector = injectLayout
	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler

	return app, nil
}

// newForwarder builds one backend per configured transport.
func newForwarder(cfg config.ActivityConfig, rdb *redis.Client) (*notify.Forwarder, error) {
	var backends []notify.Backend

	if cfg.RedisChannel != "" || cfg.RedisList != "" {
		backends = append(backends, notify.NewRedisBackend(rdb, cfg.RedisChannel, cfg.RedisList, int64(cfg.RedisListMax)))
	}
	if cfg.NATSURL != "" {
		nb, err := notify.NewNATSBackend(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, fmt.Errorf("activity NATS backend: %w", err)
		}
		backends = append(backends, nb)
	}
	if len(cfg.KafkaBrokers) > 0 {
		backends = append(backends, notify.NewKafkaBackend(cfg.KafkaBrokers, cfg.KafkaTopic))
	}

	names := make([]string, 0, len(backends))
	for _, b := range backends {
		names = append(names, b.Name())
	}
	slog.Info("activity forwarding enabled", slog.Any("backends", names), slog.Int("queue", cfg.ForwardQueue))

	return notify.NewForwarder(cfg.ForwardQueue, backends...), nil
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: recovery is outermost; the session is loaded before the
// interaction logger reads it, and both run before CSRF can reject.
func (a *App) setupMiddleware() {
	a.Echo.Use(middleware.Recovery())
	a.Echo.Use(middleware.RequestLogger(slog.Default()))
	a.Echo.Use(middleware.SecurityHeaders())
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   append([]string{a.Config.BaseURL}, a.Config.CORSOrigins...),
		AllowCredentials: true,
	}))

	// Soft session load: anonymous requests pass through, protected groups
	// add RequireAuth.
	a.Echo.Use(auth.LoadSession(a.authService))

	// Ahead of CSRF so rejected authenticated requests still get their
	// request event.
	if a.Config.Activity.LogInteractions {
		a.Echo.Use(activity.LogInteractions(a.sink, auth.GetEmail, activity.SystemClock))
	}

	a.Echo.Use(middleware.CSRF())
}

// injectLayout copies the principal and CSRF token into the templ context.
func injectLayout(c echo.Context, ctx context.Context) context.Context {
	if s := auth.GetSession(c); s != nil {
		ctx = layouts.SetUser(ctx, s.Email, s.Name, s.IsAdmin)
	}
	return layouts.SetCSRFToken(ctx, middleware.GetCSRFToken(c))
}

// errorHandler maps AppError and echo.HTTPError to JSON for JSON clients,
// a redirect to /login for browser 401s, and an error page otherwise.
func (a *App) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "An unexpected error occurred"

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		message = appErr.Message
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
				slog.String("request_id", middleware.GetRequestID(c)),
			)
		}
	case errors.As(err, &echoErr):
		code = echoErr.Code
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		} else {
			message = defaultErrorMessage(code)
		}
	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
			slog.String("request_id", middleware.GetRequestID(c)),
		)
	}

	if middleware.WantsJSON(c) {
		_ = c.JSON(code, map[string]string{"error": message})
		return
	}

	if code == http.StatusUnauthorized {
		if middleware.IsHTMX(c) {
			c.Response().Header().Set("HX-Redirect", "/login")
			_ = c.NoContent(http.StatusNoContent)
			return
		}
		_ = c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	_ = middleware.Render(c, code, pages.ErrorPage(code, message))
}

// defaultErrorMessage returns a user-facing message for common status codes
// when the error carried none.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusForbidden:
		return "You don't have permission to access this resource."
	case http.StatusNotFound:
		return "The page you're looking for doesn't exist."
	case http.StatusMethodNotAllowed:
		return "This action is not allowed."
	case http.StatusTooManyRequests:
		return "You're making too many requests. Please slow down."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return "An unexpected error occurred."
	}
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting TrainerHub server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
		slog.Int("max_activities", a.Activity.Capacity()),
		slog.Bool("log_interactions", a.Config.Activity.LogInteractions),
	)
	return a.Echo.Start(addr)
}

// Close flushes forwarded activity and closes forwarding backends. The DB
// and Redis clients belong to main.
func (a *App) Close() error {
	if a.forwarder == nil {
		return nil
	}
	return a.forwarder.Close()
}
