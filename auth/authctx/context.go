// Package authctx carries the authentication context through a request.
//
// The request gate middleware is the only writer; handlers read through
// Authenticated or MaybeAuthenticated depending on whether the route
// tolerates anonymous callers.
package authctx

import (
	"context"

	"github.com/kbukum/base-api/auth"
	apperrors "github.com/kbukum/base-api/errors"
)

// contextKey is an unexported type to prevent collisions with other packages.
type contextKey struct{}

var authKey = contextKey{}

// Set attaches an authentication context. Called by the request gate only.
func Set(ctx context.Context, ac *auth.Context) context.Context {
	return context.WithValue(ctx, authKey, ac)
}

// MaybeAuthenticated yields the attached context if present. Routes that
// behave differently for anonymous callers use this instead of rejecting.
func MaybeAuthenticated(ctx context.Context) (*auth.Context, bool) {
	ac, ok := ctx.Value(authKey).(*auth.Context)
	if !ok || ac == nil {
		return nil, false
	}
	return ac, true
}

// Authenticated yields the attached context or fails with an authentication
// error. This is a defensive check for handlers behind the request gate,
// not a substitute for it; it never fabricates a context.
func Authenticated(ctx context.Context) (*auth.Context, error) {
	ac, ok := MaybeAuthenticated(ctx)
	if !ok {
		return nil, apperrors.Authentication("No authentication context.")
	}
	return ac, nil
}
