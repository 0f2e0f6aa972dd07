package activity

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trainerhub/trainerhub/internal/apperror"
	"github.com/trainerhub/trainerhub/internal/middleware"
)

const (
	// streamBuffer is the per-subscriber backlog before records are dropped.
	streamBuffer = 64

	// keepaliveInterval spaces SSE comment frames on idle streams.
	keepaliveInterval = 15 * time.Second
)

// PrincipalResolver returns the authenticated principal's e-mail for a
// request, or "" when the request is anonymous.
type PrincipalResolver func(c echo.Context) string

// Handler serves the activity log endpoints and viewer page.
type Handler struct {
	buffer    *Buffer
	principal PrincipalResolver
	logger    *slog.Logger
}

// NewHandler creates an activity handler over buffer.
func NewHandler(buffer *Buffer, principal PrincipalResolver) *Handler {
	return &Handler{
		buffer:    buffer,
		principal: principal,
		logger:    slog.Default().With(slog.String("component", "activity")),
	}
}

// Ingest accepts one record as JSON or form data (POST /log_activity).
// Every failure, including a panic, is answered with 400 {"error": ...};
// the buffer is untouched unless the append happened.
func (h *Handler) Ingest(c echo.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("activity ingest panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprint(r)})
		}
	}()

	payload, err := decodePayload(c.Request())
	if err != nil {
		if apperror.SafeCode(err) != http.StatusBadRequest {
			h.logger.Error("activity ingest failed", slog.Any("error", err))
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": apperror.SafeMessage(err)})
	}

	h.buffer.Append(c.Request().Context(), entryFromPayload(payload, h.principal(c)))
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "logged": true})
}

// List returns the most recent records (GET /activities?limit=N). limit
// defaults to 100 and is capped at the buffer capacity.
func (h *Handler) List(c echo.Context) error {
	limit := DefaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
		}
		limit = n
	}
	limit = min(limit, h.buffer.Capacity())

	return c.JSON(http.StatusOK, map[string]any{"activities": h.buffer.Recent(limit)})
}

// Clear empties the buffer (POST /activities/clear).
func (h *Handler) Clear(c echo.Context) error {
	h.buffer.Clear()
	h.logger.Info("activity buffer cleared", slog.String("user", h.principal(c)))
	return c.JSON(http.StatusOK, map[string]string{"status": "cleared"})
}

// Viewer renders the HTML viewer shell (GET /logger/).
func (h *Handler) Viewer(c echo.Context) error {
	return middleware.Render(c, http.StatusOK, ViewerPage(min(DefaultLimit, h.buffer.Capacity())))
}

// Stream pushes newly appended records as server-sent events
// (GET /activities/stream) until the client goes away.
func (h *Handler) Stream(c echo.Context) error {
	records, cancel := h.buffer.Subscribe(streamBuffer)
	defer cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": keepalive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case rec, ok := <-records:
			if !ok {
				return nil
			}
			data, err := json.Marshal(rec)
			if err != nil {
				h.logger.Warn("skipping unencodable activity", slog.Int64("id", rec.ID), slog.Any("error", err))
				continue
			}
			if _, err := fmt.Fprintf(res, "id: %d\nevent: activity\ndata: %s\n\n", rec.ID, data); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
