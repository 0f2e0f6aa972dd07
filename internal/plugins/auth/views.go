package auth

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/trainerhub/trainerhub/internal/templates/layouts"
)

// LoginPage renders the combined sign-in / sign-up page. email pre-fills the
// form after a failed attempt; errMsg is shown above the forms.
func LoginPage(email, errMsg string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		csrf := templ.EscapeString(layouts.GetCSRFToken(ctx))
		email := templ.EscapeString(email)

		html := `<h1>Sign in</h1>`
		if errMsg != "" {
			html += `<p role="alert" style="color:#b91c1c">` + templ.EscapeString(errMsg) + `</p>`
		}
		html += `<form method="post" action="/login">` +
			`<input type="hidden" name="csrf_token" value="` + csrf + `">` +
			`<p><label>Email <input type="email" name="email" value="` + email + `" required></label></p>` +
			`<p><label>Password <input type="password" name="password" required></label></p>` +
			`<p><button type="submit">Sign in</button></p></form>` +
			`<h2>Create an account</h2>` +
			`<form method="post" action="/register">` +
			`<input type="hidden" name="csrf_token" value="` + csrf + `">` +
			`<p><label>Email <input type="email" name="email" required></label></p>` +
			`<p><label>Name <input type="text" name="display_name" minlength="2" required></label></p>` +
			`<p><label>Password <input type="password" name="password" minlength="8" required></label></p>` +
			`<p><button type="submit">Sign up</button></p></form>`

		_, err := io.WriteString(w, html)
		return err
	})
	return layouts.Base("Sign in", body)
}
