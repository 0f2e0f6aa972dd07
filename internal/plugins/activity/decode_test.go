package activity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/trainerhub/trainerhub/internal/apperror"
)

func newIngestRequest(body, contentType string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/log_activity", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	return req
}

func TestDecodePayload_JSONContentType(t *testing.T) {
	payload, err := decodePayload(newIngestRequest(`{"type":"api","details":{"n":12345678901234567}}`, "application/json; charset=utf-8"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload["type"] != "api" {
		t.Errorf("expected type api, got %v", payload["type"])
	}
	details := payload["details"].(map[string]any)
	if details["n"] != json.Number("12345678901234567") {
		t.Errorf("expected exact integer, got %v", details["n"])
	}
}

func TestDecodePayload_InvalidJSON(t *testing.T) {
	for _, body := range []string{"not json at all", "", `{"type":"a"} trailing`} {
		_, err := decodePayload(newIngestRequest(body, echo.MIMEApplicationJSON))
		if apperror.SafeCode(err) != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %v", body, err)
		}
		if !strings.HasPrefix(apperror.SafeMessage(err), "Invalid JSON") {
			t.Errorf("%q: expected Invalid JSON message, got %q", body, apperror.SafeMessage(err))
		}
	}
}

func TestDecodePayload_JSONArrayRejected(t *testing.T) {
	_, err := decodePayload(newIngestRequest(`[1,2,3]`, echo.MIMEApplicationJSON))
	if apperror.SafeCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestDecodePayload_JSONWithWrongContentType(t *testing.T) {
	payload, err := decodePayload(newIngestRequest(`{"type":"navigate"}`, echo.MIMETextPlain))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload["type"] != "navigate" {
		t.Errorf("expected JSON to be sniffed, got %v", payload)
	}
}

func TestDecodePayload_FormFallback(t *testing.T) {
	form := url.Values{}
	form.Set("type", "submit")
	form.Set("message", "saved")
	form.Set("details", `{"page":"bookings"}`)

	payload, err := decodePayload(newIngestRequest(form.Encode(), echo.MIMEApplicationForm))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry := entryFromPayload(payload, "alice@example.com")
	if entry.Type != "submit" || entry.Message != "saved" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Details["page"] != "bookings" {
		t.Errorf("expected details decoded from string, got %v", entry.Details)
	}
}

func TestNormalizeDetails(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want int
	}{
		{"object", map[string]any{"a": 1, "b": 2}, 2},
		{"json string", `{"a":1}`, 1},
		{"bad string", "not-json-either", 0},
		{"string holding array", `[1,2]`, 0},
		{"array", []any{1, 2, 3}, 0},
		{"number", json.Number("4"), 0},
		{"null", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeDetails(tc.in)
			if got == nil || len(got) != tc.want {
				t.Errorf("expected %d keys, got %#v", tc.want, got)
			}
		})
	}
}

func TestEntryFromPayload_Defaults(t *testing.T) {
	entry := entryFromPayload(map[string]any{"message": json.Number("42")}, "")
	if entry.Type != DefaultType {
		t.Errorf("expected default type, got %q", entry.Type)
	}
	if entry.Message != "42" {
		t.Errorf("expected non-string message stringified, got %q", entry.Message)
	}
}
