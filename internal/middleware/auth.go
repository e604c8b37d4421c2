// Package middleware contains HTTP middleware for the storefront API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/storefront/internal/auth"
	"github.com/DukeRupert/storefront/internal/handler"
)

// =============================================================================
// Auth Middleware Configuration
// =============================================================================

// AuthMiddleware resolves bearer tokens into users.
//
// Create one instance and use its methods as middleware.
type AuthMiddleware struct {
	oracle auth.RoleOracle
	logger *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(oracle auth.RoleOracle, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		oracle: oracle,
		logger: logger,
	}
}

// =============================================================================
// WithUser Middleware
// =============================================================================

// WithUser is middleware that attempts to load the user from the
// Authorization header.
//
// The request always continues. A missing or unverifiable token leaves the
// request anonymous; routes that need a user add RequireUser.
//
// Flow:
//
//	Request -> WithUser -> Handler
//	           |
//	           +-> Read "Authorization: Bearer <token>"
//	           +-> Ask the oracle who the token belongs to
//	           +-> Set user and token in context (if valid)
//	           +-> Call next handler (always)
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.oracle.UserFromToken(token)
		if err != nil {
			m.logger.Info("rejected bearer token",
				"path", r.URL.Path,
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		ctx := auth.SetUser(r.Context(), user)
		ctx = auth.SetToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// =============================================================================
// RequireUser Middleware
// =============================================================================

// RequireUser is middleware that rejects anonymous requests with a JSON 401.
//
// IMPORTANT: Use this AFTER WithUser in the middleware chain.
//
// Usage:
//
//	mux.Handle("POST /api/checkout", Stack(authMw.WithUser, authMw.RequireUser)(h))
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.GetUser(r.Context()).IsAuthenticated() {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	authed := Stack(authMw.WithUser, authMw.RequireUser)
//	mux.Handle("POST /api/free-trial", authed(trialHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Ensure middleware functions have correct signature
var (
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).WithUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireUser
)
