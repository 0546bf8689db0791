package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-accounts/internal/core/domain"
	"github.com/99minutos/user-accounts/internal/core/ports"
)

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying the verified caller.
func WithClaims(ctx context.Context, claims *domain.TokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFrom returns the caller attached by Auth or OptionalAuth, or nil.
func ClaimsFrom(ctx context.Context) *domain.TokenClaims {
	claims, _ := ctx.Value(claimsKey{}).(*domain.TokenClaims)
	return claims
}

// Auth rejects requests without a valid bearer token and attaches the
// verified claims to the request context.
func Auth(verifier ports.TokenVerifier) echo.MiddlewareFunc {
	return authenticate(verifier, true)
}

// OptionalAuth lets anonymous requests through. A token that is present must
// still be valid.
func OptionalAuth(verifier ports.TokenVerifier) echo.MiddlewareFunc {
	return authenticate(verifier, false)
}

func authenticate(verifier ports.TokenVerifier, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				if required {
					return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
				}
				return next(c)
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := verifier.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			req := c.Request()
			c.SetRequest(req.WithContext(WithClaims(req.Context(), claims)))
			return next(c)
		}
	}
}
