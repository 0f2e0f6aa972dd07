package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// rateWindow tracks one client's requests inside the current fixed window.
type rateWindow struct {
	count int
	start time.Time
}

// RateLimit allows maxRequests per client IP per window and answers 429
// beyond that. Used on the login and registration endpoints.
func RateLimit(maxRequests int, window time.Duration) echo.MiddlewareFunc {
	var mu sync.Mutex
	windows := make(map[string]*rateWindow)
	lastSweep := time.Now()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			now := time.Now()

			mu.Lock()
			// Stale windows are swept at most once per window.
			if now.Sub(lastSweep) > window {
				for key, w := range windows {
					if now.Sub(w.start) > window {
						delete(windows, key)
					}
				}
				lastSweep = now
			}

			w, ok := windows[ip]
			if !ok || now.Sub(w.start) > window {
				w = &rateWindow{start: now}
				windows[ip] = w
			}
			w.count++
			exceeded := w.count > maxRequests
			mu.Unlock()

			if exceeded {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "rate limit exceeded, please try again later",
				})
			}
			return next(c)
		}
	}
}
