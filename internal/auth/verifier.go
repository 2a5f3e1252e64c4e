package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"pixel-storefront/internal/domain"
)

// Claims are the access-token claims the storefront relies on.
type Claims struct {
	Email       string `json:"email"`
	IsAnonymous bool   `json:"is_anonymous"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 access tokens signed with the auth provider's JWT secret.
type Verifier struct {
	secret []byte
}

// NewVerifier returns nil when secret is empty, which disables verification.
func NewVerifier(secret string) *Verifier {
	if secret == "" {
		return nil
	}
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	return claims, nil
}
