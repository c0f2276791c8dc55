package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// Inbound ids from gateways are trusted only when they look like an id.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{8,128}$`)

// RequestID echoes a well-formed X-Request-Id or mints a UUID, and tags the
// request logger with it.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if !validRequestID.MatchString(id) {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(logg.WithRequestID(r.Context(), id)))
		})
	}
}
