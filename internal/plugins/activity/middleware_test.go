package activity

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trainerhub/trainerhub/internal/apperror"
)

func fixedClock() time.Time { return testStart }

// principalFromHeader authenticates requests carrying X-Test-User.
func principalFromHeader(c echo.Context) string {
	return c.Request().Header.Get("X-Test-User")
}

func newInteractionServer(sink Sink) *echo.Echo {
	e := echo.New()
	e.Use(LogInteractions(sink, principalFromHeader, fixedClock))
	e.GET("/bookings", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"ok": "yes"})
	})
	e.GET("/missing", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "nope")
	})
	e.GET("/conflict", func(c echo.Context) error {
		return apperror.NewConflict("no")
	})
	e.GET("/broken", func(c echo.Context) error {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "x"})
	})
	e.GET("/redirect", func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, "/bookings")
	})
	return e
}

func serve(e *echo.Echo, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.9:4444"
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestLogInteractions_AuthenticatedSuccess(t *testing.T) {
	sink := &recordingSink{}
	e := newInteractionServer(sink)

	rec := serve(e, "/bookings", testUser)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	events := sink.all()
	if len(events) != 2 {
		t.Fatalf("expected request and response events, got %d", len(events))
	}

	req := events[0]
	if req.message != "User alice@example.com - GET /bookings" {
		t.Errorf("unexpected request message %q", req.message)
	}
	if req.metadata["ip"] != "10.0.0.9" || req.metadata["method"] != "GET" || req.metadata["path"] != "/bookings" {
		t.Errorf("unexpected request metadata %v", req.metadata)
	}
	if req.metadata["timestamp"] != testStart {
		t.Errorf("expected clock timestamp, got %v", req.metadata["timestamp"])
	}

	res := events[1]
	if res.message != "Response - GET /bookings - 200" {
		t.Errorf("unexpected response message %q", res.message)
	}
	if res.metadata["status_code"] != http.StatusOK || res.metadata["user"] != testUser {
		t.Errorf("unexpected response metadata %v", res.metadata)
	}
}

func TestLogInteractions_SkipsErrorResponses(t *testing.T) {
	for _, path := range []string{"/missing", "/conflict", "/broken"} {
		sink := &recordingSink{}
		e := newInteractionServer(sink)
		serve(e, path, testUser)

		events := sink.all()
		if len(events) != 1 {
			t.Errorf("%s: expected only the request event, got %d", path, len(events))
		}
	}
}

func TestLogInteractions_RedirectIsLogged(t *testing.T) {
	sink := &recordingSink{}
	serve(newInteractionServer(sink), "/redirect", testUser)

	events := sink.all()
	if len(events) != 2 || events[1].message != "Response - GET /redirect - 303" {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestLogInteractions_AnonymousIsSilent(t *testing.T) {
	sink := &recordingSink{}
	e := newInteractionServer(sink)
	serve(e, "/bookings", "")
	serve(e, "/missing", "")

	if n := len(sink.all()); n != 0 {
		t.Errorf("expected no events for anonymous requests, got %d", n)
	}
}

func TestLogInteractions_ForwardedFor(t *testing.T) {
	sink := &recordingSink{}
	e := newInteractionServer(sink)

	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	req.Header.Set("X-Test-User", testUser)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	e.ServeHTTP(httptest.NewRecorder(), req)

	if ip := sink.all()[0].metadata["ip"]; ip != "203.0.113.7" {
		t.Errorf("expected first forwarded address, got %v", ip)
	}
}

func TestLogInteractions_PassesErrorThrough(t *testing.T) {
	want := errors.New("handler failed")
	mw := LogInteractions(panickingSink{}, func(echo.Context) string { return testUser }, nil)
	h := mw(func(echo.Context) error { return want })

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := h(c); !errors.Is(err, want) {
		t.Errorf("expected handler error unchanged, got %v", err)
	}
}

func TestLogInteractions_PanickingResolverIsAnonymous(t *testing.T) {
	sink := &recordingSink{}
	mw := LogInteractions(sink, func(echo.Context) string { panic("no session store") }, nil)
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.all()) != 0 {
		t.Error("expected no events")
	}
}
