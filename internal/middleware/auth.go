package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/robsonsouzans/listans/internal/auth"
	"github.com/robsonsouzans/listans/internal/model"
)

// publicPaths are reachable without a session. The WebSocket endpoint
// validates its token itself because browser WebSocket clients cannot set an
// Authorization header; it is matched exactly so nothing else under /ws*
// slips past the middleware.
var publicPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
	"/ws":      true,
}

// publicPrefixes are path prefixes reachable without a session. Signup and
// login must be open or nobody could ever obtain a session.
var publicPrefixes = []string{
	"/api/v1/auth/",
}

// Auth returns a middleware that authenticates requests using the given
// authenticator and stores the resulting user in the request context.
func Auth(authenticator auth.Authenticator, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			user, err := authenticator.Authenticate(r)
			if err != nil {
				logger.Debug("authentication failed",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeUnauthorized(w)
				return
			}

			ctx := auth.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isPublicPath(r *http.Request) bool {
	if publicPaths[r.URL.Path] {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	resp := model.NewErrorResponse[any]("authentication required")
	_ = json.NewEncoder(w).Encode(resp)
}
