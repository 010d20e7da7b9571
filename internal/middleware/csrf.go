package middleware

import (
	"crypto/hmac"
	"log/slog"
	"net/http"
	"strings"

	"motorlist-chat/internal/observability"
)

// NonceHeader carries the host site's CSRF nonce on state-changing requests
const NonceHeader = "X-WP-Nonce"

// CSRF validates the session nonce for state-changing requests.
//
// Requests made without a session (guests) carry no ambient credentials and
// are let through. Safe methods and operational endpoints are skipped. For
// everything else the X-WP-Nonce header must match the session nonce under a
// constant-time comparison, otherwise the request is rejected with 403.
func CSRF() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) || isExemptPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			session, ok := GetSession(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			submitted := r.Header.Get(NonceHeader)
			if submitted == "" {
				logCSRFFailure(r, session.UserID, "missing nonce")
				writeError(w, http.StatusForbidden, "invalid_nonce", "La sesión no es válida. Recarga la página.")
				return
			}

			if !hmac.Equal([]byte(session.Nonce), []byte(submitted)) {
				logCSRFFailure(r, session.UserID, "invalid nonce")
				writeError(w, http.StatusForbidden, "invalid_nonce", "La sesión no es válida. Recarga la página.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions
}

// isExemptPath reports operational endpoints that never change chat state
func isExemptPath(path string) bool {
	for _, exempt := range []string{"/health", "/ready", "/metrics"} {
		if strings.HasPrefix(path, exempt) {
			return true
		}
	}
	return false
}

func logCSRFFailure(r *http.Request, userID int64, reason string) {
	observability.FromContext(r.Context()).Warn("CSRF validation failed",
		slog.Int64("user_id", userID),
		slog.String("reason", reason),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)
}
