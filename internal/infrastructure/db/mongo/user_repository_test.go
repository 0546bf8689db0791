package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/99minutos/user-accounts/internal/core/domain"
)

func TestBuildUserFilter(t *testing.T) {
	if f := buildUserFilter(domain.UserQuery{}); len(f) != 0 {
		t.Fatalf("empty query should not filter: %v", f)
	}

	f := buildUserFilter(domain.UserQuery{Username: "a.b", Role: "admin", Application: "billing", Email: "x@y.z"})
	re, ok := f["username"].(primitive.Regex)
	if !ok || re.Pattern != `a\.b` || re.Options != "i" {
		t.Fatalf("username must be a quoted case-insensitive regex: %#v", f["username"])
	}
	if f["roles"] != "admin" || f["applications"] != "billing" || f["email"] != "x@y.z" {
		t.Fatalf("unexpected filter: %v", f)
	}
}

func TestFindOptions(t *testing.T) {
	q, err := domain.UserQuery{Sort: "-email", Page: 2, Limit: 10}.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	opts := findOptions(q)

	sort, ok := opts.Sort.(bson.D)
	if !ok || len(sort) != 1 || sort[0].Key != "email" || sort[0].Value != -1 {
		t.Fatalf("unexpected sort: %#v", opts.Sort)
	}
	if opts.Skip == nil || *opts.Skip != 10 {
		t.Fatalf("unexpected skip: %v", opts.Skip)
	}
	if opts.Limit == nil || *opts.Limit != 10 {
		t.Fatalf("unexpected limit: %v", opts.Limit)
	}
}

func TestDocumentMapping(t *testing.T) {
	oid := primitive.NewObjectID()
	u := &domain.User{ID: oid.Hex(), Username: "alice", PasswordHash: "h", Email: "alice@example.com"}

	doc := fromDomain(u)
	if doc.ID != oid || doc.Roles == nil || doc.Applications == nil {
		t.Fatalf("unexpected document: %+v", doc)
	}

	back := doc.toDomain()
	if back.ID != u.ID || back.Username != "alice" || back.PasswordHash != "h" || back.Email != u.Email {
		t.Fatalf("round trip lost data: %+v", back)
	}

	if fromDomain(&domain.User{Username: "new"}).ID != primitive.NilObjectID {
		t.Fatalf("new users must let the store assign the id")
	}
}

func TestDefaultUserSchema(t *testing.T) {
	s := DefaultUserSchema()
	if s.Collection != "users" {
		t.Fatalf("unexpected collection %q", s.Collection)
	}
	idx := s.Indexes[0]
	if keys := idx.Keys.(bson.D); keys[0].Key != "username" {
		t.Fatalf("first index must be username: %v", keys)
	}
	if idx.Options == nil || idx.Options.Unique == nil || !*idx.Options.Unique {
		t.Fatalf("username index must be unique")
	}
}

func TestEventDocument(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := eventDocument(&domain.AccountEvent{ID: "e1", Action: domain.ActionDeleted, Username: "alice", OccurredAt: at}, at)
	if doc["action"] != "user.deleted" || doc["username"] != "alice" || doc["event_id"] != "e1" {
		t.Fatalf("unexpected document: %v", doc)
	}
	if _, ok := doc["actor"]; ok {
		t.Fatalf("anonymous events must not carry an actor")
	}
}
