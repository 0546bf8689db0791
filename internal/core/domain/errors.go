package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedEntity    = errors.New("malformed entity")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDatabase           = errors.New("database error")
)

// Error attaches a caller-facing reason to one of the sentinel kinds above.
// errors.Is(err, ErrMalformedEntity) keeps working through it.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Kind }

// Malformed builds an ErrMalformedEntity with a formatted reason.
func Malformed(format string, args ...any) error {
	return &Error{Kind: ErrMalformedEntity, Reason: fmt.Sprintf(format, args...)}
}

// NotAuthorized builds an ErrNotAuthorized with the given reason.
func NotAuthorized(reason string) error {
	return &Error{Kind: ErrNotAuthorized, Reason: reason}
}

// DatabaseError wraps a failure reported by the storage client.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database: %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

func (e *DatabaseError) Is(target error) bool { return target == ErrDatabase }
