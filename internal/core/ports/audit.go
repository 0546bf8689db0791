package ports

import (
	"context"

	"github.com/99minutos/user-accounts/internal/core/domain"
)

// AuditRepository stores account activity events.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.AccountEvent) error
}

// AuditRecorder accepts events without blocking the caller on storage.
type AuditRecorder interface {
	Record(event domain.AccountEvent)
}
