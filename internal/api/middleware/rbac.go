package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-accounts/internal/core/domain"
)

// RequireRole lets the request through only when the caller holds one of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := ClaimsFrom(c.Request().Context())
			if claims == nil {
				return domain.ErrNotAuthenticated
			}
			for _, r := range roles {
				if claims.IsInRole(r) {
					return next(c)
				}
			}
			return domain.NotAuthorized("Requires role: " + strings.Join(roles, ", "))
		}
	}
}
