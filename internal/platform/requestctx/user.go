// Package requestctx carries per-request identity through context.
package requestctx

import "context"

// userContextKey is the context key for the authenticated user identity.
type userContextKey struct{}

// User identifies the requester for rights checks.
type User struct {
	// ID is the stable user identifier, empty for anonymous visitors.
	ID string
	// Admin reports whether the user may manage course content.
	Admin bool
}

// WithUser stores the requester identity in context.
func WithUser(ctx context.Context, user User) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the requester identity stored in context.
// A context without identity yields the anonymous user.
func UserFromContext(ctx context.Context) User {
	if ctx == nil {
		return User{}
	}
	user, _ := ctx.Value(userContextKey{}).(User)
	return user
}
