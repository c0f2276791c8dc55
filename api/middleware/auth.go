package middleware

import (
	"net/http"
	"strings"

	"github.com/texnika/texnika-backend/api/responses"
	"github.com/texnika/texnika-backend/pkg/auth"
	"github.com/texnika/texnika-backend/pkg/config"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
)

const bearerScheme = "bearer"

// Auth requires an "Authorization: Bearer <jwt>" header signed with cfg.
// The verified caller is stored on the request context and on log lines.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token required"))
				return
			}
			claims, err := auth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			caller := claims.Identity()
			ctx := WithIdentity(r.Context(), caller)
			if logg != nil {
				ctx = logg.WithUserID(ctx, caller.UserID.String())
				ctx = logg.WithField(ctx, "actor_role", string(caller.Role))
				if caller.DealerID != nil {
					ctx = logg.WithField(ctx, "dealer_id", caller.DealerID.String())
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
