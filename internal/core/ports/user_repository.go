package ports

import (
	"context"

	"github.com/99minutos/user-accounts/internal/core/domain"
)

// UserRepository persists users. Storage failures are returned as
// *domain.DatabaseError; a missing user is domain.ErrUserNotFound.
type UserRepository interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// Find returns one page of users matching q and the total match count.
	Find(ctx context.Context, q domain.UserQuery) (*domain.UserPage, error)
	// Add inserts the command's user and returns it with the store-assigned ID.
	// A taken username yields domain.ErrUserExists.
	Add(ctx context.Context, cmd domain.AddCommand) (*domain.User, error)
	// Save replaces the mutable fields of an existing user.
	Save(ctx context.Context, cmd domain.SaveCommand) (*domain.User, error)
	// Delete removes the user and returns the removed record.
	Delete(ctx context.Context, cmd domain.DeleteCommand) (*domain.User, error)
}
