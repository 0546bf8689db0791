package domain

const (
	RoleAdmin   = "admin"
	RoleBuiltIn = "built-in"
)

// TokenKindUser is the kind stamped on claims derived from a User.
const TokenKindUser = "user"

// User is the account record managed by this service.
type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email,omitempty"`
	PasswordHash string   `json:"-"`
	Applications []string `json:"applications"`
	Roles        []string `json:"roles"`
}

// Clone returns a deep copy so commands can mutate without touching the caller's value.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Applications = cloneStrings(u.Applications)
	c.Roles = cloneStrings(u.Roles)
	return &c
}

// HasRole reports whether role is assigned to the user.
func (u *User) HasRole(role string) bool {
	return contains(u.Roles, role)
}

// TokenClaims derives the claim set handed to the token signer.
func (u *User) TokenClaims() TokenClaims {
	return TokenClaims{
		Subject:      u.Username,
		Kind:         TokenKindUser,
		Applications: nonNil(cloneStrings(u.Applications)),
		Roles:        nonNil(cloneStrings(u.Roles)),
	}
}

// TokenClaims is the non-secret identity summary carried by issued tokens.
type TokenClaims struct {
	Subject      string   `json:"login"`
	Kind         string   `json:"type"`
	Applications []string `json:"applications"`
	Roles        []string `json:"roles"`
}

func (c *TokenClaims) IsInRole(role string) bool {
	if c == nil {
		return false
	}
	return contains(c.Roles, role)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
