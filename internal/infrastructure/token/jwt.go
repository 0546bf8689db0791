// Package token signs and verifies the bearer tokens handed out on authentication.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/user-accounts/internal/core/domain"
	"github.com/99minutos/user-accounts/internal/core/ports"
)

var ErrInvalidToken = errors.New("invalid token")

// claims is the JWT body: the user claim set plus registered claims.
type claims struct {
	Login        string   `json:"login"`
	Type         string   `json:"type"`
	Applications []string `json:"applications"`
	Roles        []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWT issues and verifies HS256 tokens.
type JWT struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWT(secret, issuer string, ttl time.Duration) *JWT {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWT{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

var (
	_ ports.TokenIssuer   = (*JWT)(nil)
	_ ports.TokenVerifier = (*JWT)(nil)
)

func (j *JWT) Sign(c domain.TokenClaims) (string, error) {
	now := j.now()
	body := claims{
		Login:        c.Subject,
		Type:         c.Kind,
		Applications: c.Applications,
		Roles:        c.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, body).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

func (j *JWT) Verify(raw string) (*domain.TokenClaims, error) {
	var body claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	tkn, err := jwt.ParseWithClaims(raw, &body, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return &domain.TokenClaims{
		Subject:      body.Login,
		Kind:         body.Type,
		Applications: nonNil(body.Applications),
		Roles:        nonNil(body.Roles),
	}, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
