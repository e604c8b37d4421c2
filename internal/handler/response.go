// Package handler contains the JSON HTTP handlers of the storefront API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/DukeRupert/storefront/internal/domain"
)

// maxBodyBytes caps request bodies; the largest is a custom package form.
const maxBodyBytes = 64 << 10

// RouteMiddleware is the per-route middleware handlers register with.
// WithUser is expected to wrap the whole mux.
type RouteMiddleware struct {
	// RequireUser rejects anonymous callers.
	RequireUser func(http.Handler) http.Handler
	// Limit throttles mutating routes per caller.
	Limit func(http.Handler) http.Handler
}

func (m RouteMiddleware) authed(h http.HandlerFunc) http.Handler {
	return m.requireUser(h)
}

func (m RouteMiddleware) authedLimited(h http.HandlerFunc) http.Handler {
	return m.requireUser(m.limit(h))
}

func (m RouteMiddleware) limited(h http.HandlerFunc) http.Handler {
	return m.limit(h)
}

func (m RouteMiddleware) requireUser(h http.Handler) http.Handler {
	if m.RequireUser == nil {
		return h
	}
	return m.RequireUser(h)
}

func (m RouteMiddleware) limit(h http.Handler) http.Handler {
	if m.Limit == nil {
		return h
	}
	return m.Limit(h)
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads the request body into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &tooLarge):
		return domain.Errorf(domain.ETOOLARGE, op, "Request body is too large")
	default:
		return domain.Invalid(op, "Request body must be valid JSON")
	}
}
