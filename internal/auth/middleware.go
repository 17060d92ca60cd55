package auth

import (
	"context"
	"net/http"

	"github.com/sakif/resume-builder/internal/model"
)

// contextKey is an unexported type used for context keys in this package,
// so no other package can read or shadow the identity value.
type contextKey string

const identityKey contextKey = "identity"

// ErrorWriter renders an error response. The handler package supplies the
// implementation so error bodies look the same on every route.
type ErrorWriter func(w http.ResponseWriter, err error)

// RequireIdentity is a middleware that enforces authentication on protected
// routes.
//
// It verifies the request credential through the Gate and stores the
// resulting Identity in the request context. On failure the request chain
// stops before the handler runs, so an unauthenticated request never reaches
// storage.
func RequireIdentity(gate *Gate, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := gate.Verify(r.Context(), r.Header)
			if err != nil {
				writeError(w, err)
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the authenticated identity.
//
// Returns (nil, false) on routes not wrapped by RequireIdentity.
func IdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*model.Identity)
	return identity, ok && identity != nil && identity.UID != ""
}
