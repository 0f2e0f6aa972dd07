package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trainerhub/trainerhub/internal/apperror"
	"github.com/trainerhub/trainerhub/internal/middleware"
)

// sessionCookieName is the HTTP cookie holding the session token.
const sessionCookieName = "trainerhub_session"

// afterLoginPath is where browsers land after signing in.
const afterLoginPath = "/logger/"

// Handler handles login, registration and logout. Handlers bind the
// request, call the service, and render; no business logic lives here.
type Handler struct {
	service   AuthService
	cookieTTL int
}

// NewHandler creates an auth handler. cookieMaxAge is in seconds.
func NewHandler(service AuthService, cookieMaxAge int) *Handler {
	return &Handler{service: service, cookieTTL: cookieMaxAge}
}

// LoginForm renders the login page (GET /login).
func (h *Handler) LoginForm(c echo.Context) error {
	if GetSession(c) != nil {
		return c.Redirect(http.StatusSeeOther, afterLoginPath)
	}
	return middleware.Render(c, http.StatusOK, LoginPage("", ""))
}

// Login processes POST /login with a form or JSON body.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	token, user, err := h.service.Login(c.Request().Context(), LoginInput(req))
	if err != nil {
		return h.formError(c, err, func(msg string) error {
			return middleware.Render(c, http.StatusOK, LoginPage(req.Email, msg))
		})
	}

	h.setSessionCookie(c, token)
	if middleware.WantsJSON(c) {
		return c.JSON(http.StatusOK, map[string]any{"status": "ok", "user": user})
	}
	return redirect(c, afterLoginPath)
}

// Register processes POST /register and signs the new user in.
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	ctx := c.Request().Context()
	if _, err := h.service.Register(ctx, RegisterInput(req)); err != nil {
		return h.formError(c, err, func(msg string) error {
			return middleware.Render(c, http.StatusOK, LoginPage(req.Email, msg))
		})
	}

	token, user, err := h.service.Login(ctx, LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		return redirect(c, "/login")
	}

	h.setSessionCookie(c, token)
	if middleware.WantsJSON(c) {
		return c.JSON(http.StatusCreated, map[string]any{"status": "ok", "user": user})
	}
	return redirect(c, afterLoginPath)
}

// Logout destroys the session and clears the cookie (POST /logout).
func (h *Handler) Logout(c echo.Context) error {
	if token := getSessionToken(c); token != "" {
		// The cookie is cleared regardless of whether Redis answered.
		_ = h.service.DestroySession(c.Request().Context(), token)
	}
	clearSessionCookie(c)

	if middleware.WantsJSON(c) {
		return c.JSON(http.StatusOK, map[string]string{"status": "logged_out"})
	}
	return redirect(c, "/login")
}

// formError answers JSON clients with the AppError status, and browsers by
// re-rendering the form with the message. Internal errors go to the app
// error handler.
func (h *Handler) formError(c echo.Context, err error, render func(msg string) error) error {
	code := apperror.SafeCode(err)
	if code >= http.StatusInternalServerError {
		return err
	}
	msg := apperror.SafeMessage(err)
	if middleware.WantsJSON(c) {
		return c.JSON(code, map[string]string{"error": msg})
	}
	return render(msg)
}

func redirect(c echo.Context, path string) error {
	if middleware.IsHTMX(c) {
		c.Response().Header().Set("HX-Redirect", path)
		return c.NoContent(http.StatusNoContent)
	}
	return c.Redirect(http.StatusSeeOther, path)
}

// --- Cookie helpers ---

func getSessionToken(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// setSessionCookie writes an HttpOnly, SameSite=Lax session cookie, marked
// Secure when served over TLS directly or behind a TLS-terminating proxy.
func (h *Handler) setSessionCookie(c echo.Context, token string) {
	req := c.Request()
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   h.cookieTTL,
	})
}

func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
