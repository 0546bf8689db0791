package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/user-accounts/internal/core/domain"
	"github.com/99minutos/user-accounts/internal/core/ports"
)

const collectionAccountEvents = "account_events"

// EventRepository implements ports.AuditRepository using MongoDB.
type EventRepository struct {
	col *mongo.Collection
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *mongo.Database) *EventRepository {
	return &EventRepository{col: db.Collection(collectionAccountEvents)}
}

var _ ports.AuditRepository = (*EventRepository)(nil)

// InsertEvent appends an entry to the account_events audit collection.
func (r *EventRepository) InsertEvent(ctx context.Context, event *domain.AccountEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, eventDocument(event, time.Now().UTC()))
	if err != nil {
		return dbError("insert account event", err)
	}
	return nil
}

// EnsureIndexes creates the lookup index for a user's history.
func (r *EventRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "username", Value: 1}, {Key: "occurred_at", Value: -1}},
	})
	if err != nil {
		return dbError("ensure event indexes", err)
	}
	return nil
}

func eventDocument(event *domain.AccountEvent, processedAt time.Time) bson.M {
	doc := bson.M{
		"event_id":     event.ID,
		"action":       string(event.Action),
		"username":     event.Username,
		"occurred_at":  event.OccurredAt.UTC(),
		"processed_at": processedAt,
	}
	if event.Actor != "" {
		doc["actor"] = event.Actor
	}
	return doc
}
