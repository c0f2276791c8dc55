package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/auth"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// WithIdentity stores the authenticated caller on ctx.
func WithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}

// IdentityFromContext returns the caller set by Auth.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	if ctx == nil {
		return auth.Identity{}, false
	}
	identity, ok := ctx.Value(ctxIdentity).(auth.Identity)
	if !ok || identity.UserID == uuid.Nil {
		return auth.Identity{}, false
	}
	return identity, true
}

func UserIDFromContext(ctx context.Context) string {
	if identity, ok := IdentityFromContext(ctx); ok {
		return identity.UserID.String()
	}
	return ""
}

// RequireIdentity is IdentityFromContext for handlers that cannot serve anonymous callers.
func RequireIdentity(ctx context.Context) (auth.Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return auth.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return identity, nil
}
