package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"motorlist-chat/internal/domain"
	"motorlist-chat/internal/observability"
)

type contextKey string

const (
	// ActorKey is the context key for the request actor
	ActorKey contextKey = "actor"
	// SessionKey is the context key for the session
	SessionKey contextKey = "session"
)

const msgSessionExpired = "Tu sesión ha expirado. Inicia sesión de nuevo."

// Session resolves the optional host-site session cookie. Requests without
// the cookie continue as anonymous guests; a cookie that no longer maps to a
// live session is rejected so the client can send the user back to login.
func Session(sessionRepo domain.SessionRepository, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := sessionRepo.GetByToken(r.Context(), cookie.Value)
			if err != nil {
				if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrSessionExpired) {
					writeError(w, http.StatusUnauthorized, "session_expired", msgSessionExpired)
					return
				}
				observability.FromContext(r.Context()).Error("failed to load session",
					slog.String("error", err.Error()))
				writeError(w, http.StatusInternalServerError, "internal_error", "Error interno del servidor.")
				return
			}

			ctx := WithSession(r.Context(), session)
			ctx = WithActor(ctx, domain.Actor{UserID: session.UserID})
			ctx = observability.WithUserID(ctx, session.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetActor returns the request actor; anonymous when no session was resolved
func GetActor(ctx context.Context) domain.Actor {
	if actor, ok := ctx.Value(ActorKey).(domain.Actor); ok {
		return actor
	}
	return domain.Actor{}
}

// GetSession retrieves the session from the request context
func GetSession(ctx context.Context) (*domain.Session, bool) {
	session, ok := ctx.Value(SessionKey).(*domain.Session)
	return session, ok
}

// WithActor adds the actor to the context (useful for testing)
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// WithSession adds session to context (useful for testing)
func WithSession(ctx context.Context, session *domain.Session) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}
