package activity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trainerhub/trainerhub/internal/apperror"
)

const (
	// maxBodyBytes bounds an ingest body.
	maxBodyBytes = 1 << 20

	// maxFormMemory is the in-memory part of a multipart ingest body.
	maxFormMemory = 1 << 20
)

var errNotObject = errors.New("JSON body must be an object")

// decodePayload reads an ingest body into a key/value map. A JSON content
// type must carry a JSON object; anything else is tried as JSON first and
// read as a form when that fails.
func decodePayload(req *http.Request) (map[string]any, error) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	if strings.Contains(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		payload, err := decodeJSONObject(body)
		if errors.Is(err, errNotObject) {
			return nil, apperror.NewBadRequest(err.Error())
		}
		if err != nil {
			return nil, apperror.NewBadRequest("Invalid JSON: " + err.Error())
		}
		return payload, nil
	}

	if payload, err := decodeJSONObject(body); err == nil {
		return payload, nil
	}

	req.Body = io.NopCloser(bytes.NewReader(body))
	return decodeForm(req)
}

// decodeJSONObject parses exactly one JSON object. Numbers stay json.Number
// so integers round-trip unchanged.
func decodeJSONObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("unexpected end of JSON input")
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid character after top-level value")
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

func decodeForm(req *http.Request) (map[string]any, error) {
	var err error
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		err = req.ParseMultipartForm(maxFormMemory)
	} else {
		err = req.ParseForm()
	}
	if err != nil {
		return nil, apperror.NewBadRequest("Invalid form data: " + err.Error())
	}

	payload := make(map[string]any, len(req.PostForm))
	for k := range req.PostForm {
		payload[k] = req.PostForm.Get(k)
	}
	return payload, nil
}

// entryFromPayload maps a decoded body to an Entry. Missing or null fields
// take their defaults; present strings, empty ones included, are kept.
func entryFromPayload(payload map[string]any, user string) Entry {
	e := NewEntry(user)
	e.Type = stringField(payload, "type", e.Type)
	e.Message = stringField(payload, "message", e.Message)
	e.Details = normalizeDetails(payload["details"])
	return e
}

func stringField(payload map[string]any, key, def string) string {
	switch v := payload[key].(type) {
	case nil:
		return def
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// normalizeDetails coerces details to a map. A string is decoded as JSON;
// anything that is not an object ends up as an empty map.
func normalizeDetails(v any) map[string]any {
	switch d := v.(type) {
	case map[string]any:
		return d
	case string:
		if obj, err := decodeJSONObject([]byte(d)); err == nil {
			return obj
		}
	}
	return map[string]any{}
}
