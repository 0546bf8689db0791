package ports

import "context"

// IdempotencyStore binds a client-supplied Idempotency-Key to the user it created.
type IdempotencyStore interface {
	// Claim atomically reserves key for a create that is about to run. When
	// the key is already taken, claimed is false and userID is the user bound
	// to it, or "" while the first request is still in flight.
	Claim(ctx context.Context, key string) (claimed bool, userID string, err error)
	// Remember binds a claimed key to the user that was created.
	Remember(ctx context.Context, key, userID string) error
	// Release drops a claim whose create failed so the client can retry.
	Release(ctx context.Context, key string) error
}
