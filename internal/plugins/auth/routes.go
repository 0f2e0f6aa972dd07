package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trainerhub/trainerhub/internal/middleware"
)

// RegisterRoutes sets up the public auth routes. POST endpoints are rate
// limited per IP: 10 logins and 5 registrations per minute.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/login", h.LoginForm)
	e.POST("/login", h.Login, middleware.RateLimit(10, time.Minute))
	e.POST("/register", h.Register, middleware.RateLimit(5, time.Minute))
	e.POST("/logout", h.Logout)
}
