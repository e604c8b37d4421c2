// Package auth carries the caller's identity through a request: the user
// resolved from the bearer token and the token itself, which outbound
// content API calls forward.
package auth

import (
	"context"

	"github.com/DukeRupert/storefront/internal/domain"
)

type ctxKey int

const (
	userKey ctxKey = iota
	tokenKey
)

// GetUser returns the caller resolved by the auth middleware, or nil for
// anonymous visitors. A nil *domain.User is safe to call IsAuthenticated on.
func GetUser(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userKey).(*domain.User)
	return user
}

func SetUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetToken returns the bearer token stored in the context, or "".
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// SetToken stores the caller's bearer token in the context.
func SetToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}
