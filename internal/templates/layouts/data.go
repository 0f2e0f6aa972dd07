// Package layouts holds the page shell shared by server-rendered pages and
// typed context helpers carrying layout data into templ components. Only
// simple types are stored so this package imports no plugin.
//
// Data flow: middleware -> Echo context -> LayoutInjector -> Go context -> templ.
package layouts

import "context"

type ctxKey string

const (
	keyUserEmail ctxKey = "layout_user_email"
	keyUserName  ctxKey = "layout_user_name"
	keyIsAdmin   ctxKey = "layout_is_admin"
	keyCSRFToken ctxKey = "layout_csrf_token"
)

// SetUser stores the signed-in principal for the page header.
func SetUser(ctx context.Context, email, name string, isAdmin bool) context.Context {
	ctx = context.WithValue(ctx, keyUserEmail, email)
	ctx = context.WithValue(ctx, keyUserName, name)
	return context.WithValue(ctx, keyIsAdmin, isAdmin)
}

// SetCSRFToken stores the CSRF token rendered into the page meta tag.
func SetCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, keyCSRFToken, token)
}

// GetUserEmail returns the principal's e-mail, or "" for anonymous pages.
func GetUserEmail(ctx context.Context) string {
	v, _ := ctx.Value(keyUserEmail).(string)
	return v
}

// GetUserName returns the principal's display name.
func GetUserName(ctx context.Context) string {
	v, _ := ctx.Value(keyUserName).(string)
	return v
}

// IsAdmin reports whether the principal is a super-user.
func IsAdmin(ctx context.Context) bool {
	v, _ := ctx.Value(keyIsAdmin).(bool)
	return v
}

// IsAuthenticated reports whether a principal was injected.
func IsAuthenticated(ctx context.Context) bool {
	return GetUserEmail(ctx) != ""
}

// GetCSRFToken returns the injected CSRF token.
func GetCSRFToken(ctx context.Context) string {
	v, _ := ctx.Value(keyCSRFToken).(string)
	return v
}
