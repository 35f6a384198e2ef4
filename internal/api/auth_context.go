package api

import (
	"context"
	"net/http"

	"github.com/shelfapp/shelf-server/internal/http/response"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// userIDKey is the context key for the authenticated user ID.
const userIDKey ctxKey = "userID"

// userIDFromContext returns the user ID stored by requireAuth, or "".
func userIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// setUserID stores the user ID in context.
func setUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// requireAuth guards raw chi routes: it validates the Bearer token and
// stores the user ID in the request context. huma operations authenticate
// through authenticateRequest instead.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.authenticateRequest(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		next.ServeHTTP(w, r.WithContext(setUserID(r.Context(), userID)))
	})
}
