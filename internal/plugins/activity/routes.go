package activity

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts the activity endpoints behind mw, which must reject
// unauthenticated requests.
func RegisterRoutes(e *echo.Echo, h *Handler, mw ...echo.MiddlewareFunc) {
	g := e.Group("", mw...)

	g.GET("/logger", h.Viewer)
	g.GET("/logger/", h.Viewer)
	g.POST("/log_activity", h.Ingest)
	g.GET("/activities", h.List)
	g.POST("/activities/clear", h.Clear)
	g.GET("/activities/stream", h.Stream)
}
