package auth

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trainerhub/trainerhub/internal/apperror"
	"github.com/trainerhub/trainerhub/internal/middleware"
)

// contextKeySession holds the *Session in the Echo context. Other plugins use
// the exported getters below.
const contextKeySession = "auth_session"

// LoadSession resolves the session cookie, when present, and stores the
// session in the context. It never rejects a request: anonymous requests
// simply carry no session. RequireAuth enforces presence per route group.
func LoadSession(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := getSessionToken(c)
			if token == "" {
				return next(c)
			}

			session, err := service.ValidateSession(c.Request().Context(), token)
			if err != nil {
				if apperror.SafeCode(err) == http.StatusUnauthorized {
					clearSessionCookie(c)
				} else {
					slog.Warn("session lookup failed", slog.Any("error", err))
				}
				return next(c)
			}

			c.Set(contextKeySession, session)
			return next(c)
		}
	}
}

// RequireAuth rejects requests that LoadSession did not authenticate: 401
// JSON for API/JSON clients, HX-Redirect for HTMX, 303 to /login otherwise.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetSession(c) == nil {
				return handleUnauthenticated(c)
			}
			return next(c)
		}
	}
}

func handleUnauthenticated(c echo.Context) error {
	if middleware.WantsJSON(c) {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "authentication required",
		})
	}

	if middleware.IsHTMX(c) {
		c.Response().Header().Set("HX-Redirect", "/login")
		return c.NoContent(http.StatusNoContent)
	}

	return c.Redirect(http.StatusSeeOther, "/login")
}

// --- Exported getters for other plugins ---

// GetSession returns the authenticated session, or nil for anonymous requests.
func GetSession(c echo.Context) *Session {
	session, _ := c.Get(contextKeySession).(*Session)
	return session
}

// GetEmail returns the authenticated principal's e-mail, or "".
func GetEmail(c echo.Context) string {
	if s := GetSession(c); s != nil {
		return s.Email
	}
	return ""
}
