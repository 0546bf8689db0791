package ports

import "github.com/99minutos/user-accounts/internal/core/domain"

// TokenIssuer signs claim sets into opaque bearer tokens.
type TokenIssuer interface {
	Sign(claims domain.TokenClaims) (string, error)
}

// TokenVerifier checks a bearer token and returns the claims it carries.
type TokenVerifier interface {
	Verify(token string) (*domain.TokenClaims, error)
}
