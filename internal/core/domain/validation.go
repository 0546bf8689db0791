package domain

import (
	"regexp"
	"strings"
)

// emailPattern is a loose shape check, not RFC 5322.
var emailPattern = regexp.MustCompile(`^[\w_\-]+\.?[\w_\-]*@[\w_\-]+\.[\w_\-]+`)

// ValidateUsername fails only when the username was not supplied at all.
func ValidateUsername(username *string) error {
	if username == nil {
		return Malformed("Invalid username")
	}
	return nil
}

func ValidatePassword(password string) error {
	if password == "" {
		return Malformed("Password cannot be empty")
	}
	return nil
}

func ValidateEmailAddress(email string) error {
	if !emailPattern.MatchString(email) {
		return Malformed("Email address is in a wrong format")
	}
	return nil
}

// AllowList is a fixed set of accepted names, such as the known roles.
type AllowList []string

func (l AllowList) Contains(name string) bool {
	return contains(l, name)
}

// Rejected returns every item that is not on the list, in input order.
func (l AllowList) Rejected(items []string) []string {
	var bad []string
	for _, item := range items {
		if !l.Contains(item) {
			bad = append(bad, item)
		}
	}
	return bad
}

// Check validates a caller supplied list as a whole. kind is used in the
// error message ("role", "application").
func (l AllowList) Check(kind string, items []string) error {
	if items == nil {
		return Malformed("%s list cannot be undefined.", capitalize(kind)+"s")
	}
	if bad := l.Rejected(items); len(bad) > 0 {
		return Malformed("Wrong %s name(s) in list (%s)", kind, strings.Join(bad, ", "))
	}
	return nil
}

// Permissions holds the configured allow-lists. It is read-only after start-up.
type Permissions struct {
	Applications AllowList
	Roles        AllowList
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
