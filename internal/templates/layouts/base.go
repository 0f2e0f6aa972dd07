package layouts

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const baseStyles = `body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1f2933}
header{display:flex;justify-content:space-between;align-items:center;padding:.75rem 1.5rem;background:#1f2933;color:#fff}
header a,header button{color:#fff}
main{padding:1.5rem;max-width:70rem;margin:0 auto}
.muted{color:#6b7280}`

// Base wraps body in the HTML document shell: title, CSRF meta tag, and a
// header showing the signed-in principal with a logout form.
func Base(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		csrf := templ.EscapeString(GetCSRFToken(ctx))
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1">`+
			`<meta name="csrf-token" content="`+csrf+`">`+
			`<title>`+templ.EscapeString(title)+` · TrainerHub</title>`+
			`<style>`+baseStyles+`</style></head><body><header><strong>TrainerHub</strong>`); err != nil {
			return err
		}

		if email := GetUserEmail(ctx); email != "" {
			role := ""
			if IsAdmin(ctx) {
				role = ` <span class="muted">(admin)</span>`
			}
			if _, err := io.WriteString(w, `<span>`+templ.EscapeString(email)+role+
				` <form method="post" action="/logout" style="display:inline">`+
				`<input type="hidden" name="csrf_token" value="`+csrf+`">`+
				`<button type="submit">Log out</button></form></span>`); err != nil {
				return err
			}
		}

		if _, err := io.WriteString(w, `</header><main>`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}
