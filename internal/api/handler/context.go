package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-accounts/internal/api/middleware"
	"github.com/99minutos/user-accounts/internal/core/domain"
)

// caller returns the claims attached by the auth middleware, or nil for an
// anonymous request. Services decide what anonymous callers may do.
func caller(c echo.Context) *domain.TokenClaims {
	return middleware.ClaimsFrom(c.Request().Context())
}

// bind decodes the request into req and runs the registered validator.
// Undecodable bodies are a 400 from echo; validation failures are malformed entities.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return c.Validate(req)
}
