package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/user-accounts/internal/core/domain"
)

func TestJWT_RoundTrip(t *testing.T) {
	j := NewJWT("secret", "user-accounts", time.Hour)
	in := domain.TokenClaims{Subject: "alice", Kind: "user", Applications: []string{"billing"}, Roles: []string{"admin"}}

	signed, err := j.Sign(in)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	out, err := j.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Subject != "alice" || out.Kind != "user" || !out.IsInRole("admin") || out.Applications[0] != "billing" {
		t.Fatalf("unexpected claims: %+v", out)
	}
}

func TestJWT_EmptyListsSurvive(t *testing.T) {
	j := NewJWT("secret", "", time.Hour)
	signed, _ := j.Sign(domain.TokenClaims{Subject: "bob", Kind: "user"})
	out, err := j.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Roles == nil || out.Applications == nil {
		t.Fatalf("lists must be non-nil: %+v", out)
	}
}

func TestJWT_Rejects(t *testing.T) {
	j := NewJWT("secret", "user-accounts", time.Hour)
	signed, _ := j.Sign(domain.TokenClaims{Subject: "alice", Kind: "user"})

	other := NewJWT("other-secret", "user-accounts", time.Hour)
	if _, err := other.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret accepted: %v", err)
	}

	wrongIssuer := NewJWT("secret", "someone-else", time.Hour)
	if _, err := wrongIssuer.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong issuer accepted: %v", err)
	}

	expired := NewJWT("secret", "user-accounts", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := expired.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token accepted: %v", err)
	}

	if _, err := j.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage accepted: %v", err)
	}
}

func TestJWT_RejectsOtherAlgorithms(t *testing.T) {
	j := NewJWT("secret", "", time.Hour)
	tkn := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"login": "alice",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tkn.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := j.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("HS512 token accepted: %v", err)
	}
}
