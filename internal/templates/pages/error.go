// Package pages holds server-rendered pages not owned by a plugin.
package pages

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/trainerhub/trainerhub/internal/templates/layouts"
)

// ErrorPage renders a status code and message inside the base layout.
func ErrorPage(code int, message string) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<h1>%d %s</h1><p>%s</p><p><a href="/">Back to start</a></p>`,
			code, templ.EscapeString(http.StatusText(code)), templ.EscapeString(message))
		return err
	})
	return layouts.Base(http.StatusText(code), body)
}
