package auth

import (
	"errors"
	"fmt"

	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a bearer token cannot be verified.
var ErrInvalidToken = errors.New("invalid bearer token")

// RoleOracle resolves a bearer token into the user it was issued to.
type RoleOracle interface {
	UserFromToken(token string) (*domain.User, error)
}

// Claims are the claims the identity service puts in storefront tokens.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTOracle verifies HS256 tokens signed by the identity service.
type JWTOracle struct {
	secret []byte
}

// NewJWTOracle creates an oracle that verifies tokens with the shared secret.
func NewJWTOracle(secret string) *JWTOracle {
	return &JWTOracle{secret: []byte(secret)}
}

// UserFromToken parses and verifies the token and maps its claims to a user.
// Tokens without a subject or with an unknown role are rejected.
func (o *JWTOracle) UserFromToken(token string) (*domain.User, error) {
	const op = "auth.UserFromToken"

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return o.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%s: %w: missing subject", op, ErrInvalidToken)
	}

	role := domain.Role(claims.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("%s: %w: unknown role %q", op, ErrInvalidToken, claims.Role)
	}

	return &domain.User{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  role,
	}, nil
}
