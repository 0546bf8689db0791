package ports

import (
	"context"

	"github.com/99minutos/user-accounts/internal/core/domain"
)

// UserService exposes the account use cases to the transport layer. caller is
// the verified token of the current request, or nil when the request carried none.
type UserService interface {
	Find(ctx context.Context, q domain.UserQuery) (*domain.UserPage, error)
	Get(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, caller *domain.TokenClaims, username string) (*domain.User, error)
	Current(ctx context.Context, caller *domain.TokenClaims) (*domain.User, error)

	Create(ctx context.Context, caller *domain.TokenClaims, in CreateUserInput) (*CreateUserResult, error)
	Update(ctx context.Context, caller *domain.TokenClaims, id string, in domain.UpdateUserInput) (*domain.User, error)
	Delete(ctx context.Context, caller *domain.TokenClaims, id string) (*domain.User, error)

	ChangePassword(ctx context.Context, caller *domain.TokenClaims, id string, in ChangePasswordInput) error
	ChangeEmailAddress(ctx context.Context, caller *domain.TokenClaims, id, email string) (*domain.User, error)
	ResetPassword(ctx context.Context, caller *domain.TokenClaims, in ResetPasswordInput) error

	Roles(ctx context.Context, id string) ([]string, error)
	ChangeRoles(ctx context.Context, caller *domain.TokenClaims, id string, roles []string) (*domain.User, error)
	Applications(ctx context.Context, id string) ([]string, error)
	ChangeApplications(ctx context.Context, caller *domain.TokenClaims, id string, applications []string) (*domain.User, error)

	KnownRoles() []string
	KnownApplications() []string

	// Authenticate returns a signed token for valid credentials. Unknown users
	// and wrong passwords both fail with domain.ErrInvalidCredentials.
	Authenticate(ctx context.Context, username, password string) (string, error)
}

// CreateUserInput wraps the account fields with the optional Idempotency-Key
// sent by the client.
type CreateUserInput struct {
	domain.CreateUserInput
	IdempotencyKey string
}

// CreateUserResult is returned by Create.
type CreateUserResult struct {
	User *domain.User
	// AlreadyExisted is true when the Idempotency-Key matched an earlier create.
	AlreadyExisted bool
}

type ChangePasswordInput struct {
	OldPassword     string
	Password        string
	PasswordConfirm string
}

type ResetPasswordInput struct {
	Username        string
	Password        string
	PasswordConfirm string
}
