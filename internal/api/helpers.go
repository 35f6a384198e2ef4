package api

import (
	"context"
	"net"
	"strings"

	domainerrors "github.com/shelfapp/shelf-server/internal/errors"
)

// authenticateRequest validates the Authorization header and returns the user ID.
// Every failure is a ForbiddenError.
func (s *Server) authenticateRequest(ctx context.Context, authHeader string) (string, error) {
	if authHeader == "" {
		return "", domainerrors.Forbidden("Authentication required")
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", domainerrors.Forbidden("Invalid authorization header format")
	}

	return s.services.Auth.Authenticate(ctx, strings.TrimSpace(token))
}

// clientIP strips the port from a remote address. chi's RealIP middleware
// has already replaced it with X-Real-IP / X-Forwarded-For when present.
func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
