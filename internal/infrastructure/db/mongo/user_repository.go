package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/user-accounts/internal/core/domain"
	"github.com/99minutos/user-accounts/internal/core/ports"
)

// UserSchema describes where and how users are stored. It is built once at
// start-up and handed to NewUserRepository.
type UserSchema struct {
	Collection string
	Indexes    []mongo.IndexModel
}

// DefaultUserSchema stores users in "users" with a unique username. The field
// names match the documents written by the previous service generation.
func DefaultUserSchema() UserSchema {
	return UserSchema{
		Collection: "users",
		Indexes: []mongo.IndexModel{
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "roles", Value: 1}}},
			{Keys: bson.D{{Key: "email", Value: 1}}},
		},
	}
}

type userDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email,omitempty"`
	PasswordHash string             `bson:"password"`
	Applications []string           `bson:"applications"`
	Roles        []string           `bson:"roles"`
}

// UserRepository implements ports.UserRepository using MongoDB.
type UserRepository struct {
	col    *mongo.Collection
	schema UserSchema
}

func NewUserRepository(db *mongo.Database, schema UserSchema) *UserRepository {
	return &UserRepository{col: db.Collection(schema.Collection), schema: schema}
}

var _ ports.UserRepository = (*UserRepository)(nil)

// EnsureIndexes creates the schema's indexes, including the username uniqueness constraint.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if len(r.schema.Indexes) == 0 {
		return nil
	}
	if _, err := r.col.Indexes().CreateMany(ctx, r.schema.Indexes); err != nil {
		return dbError("ensure user indexes", err)
	}
	return nil
}

func (r *UserRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, "get user", bson.M{"_id": oid})
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, "get user by username", bson.M{"username": username})
}

func (r *UserRepository) findOne(ctx context.Context, op string, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, dbError(op, err)
	}
	return doc.toDomain(), nil
}

// Find returns a page of users and the total number of matches.
func (r *UserRepository) Find(ctx context.Context, q domain.UserQuery) (*domain.UserPage, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := buildUserFilter(q)

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, dbError("count users", err)
	}

	cur, err := r.col.Find(ctx, filter, findOptions(q))
	if err != nil {
		return nil, dbError("find users", err)
	}
	defer cur.Close(ctx)

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, dbError("decode users", err)
	}

	items := make([]*domain.User, 0, len(docs))
	for i := range docs {
		items = append(items, docs[i].toDomain())
	}
	return &domain.UserPage{Items: items, TotalFound: total, Page: q.Page, Limit: q.Limit}, nil
}

// Add inserts a new user and returns it with the generated ID.
func (r *UserRepository) Add(ctx context.Context, cmd domain.AddCommand) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := fromDomain(cmd.Entity())
	doc.ID = primitive.NilObjectID

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, dbError("insert user", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.toDomain(), nil
}

// Save overwrites every mutable field of the user. Last write wins.
func (r *UserRepository) Save(ctx context.Context, cmd domain.SaveCommand) (*domain.User, error) {
	user := cmd.Entity()
	oid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := fromDomain(user)
	update := bson.M{"$set": bson.M{
		"email":        doc.Email,
		"password":     doc.PasswordHash,
		"applications": doc.Applications,
		"roles":        doc.Roles,
	}}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return nil, dbError("update user", err)
	}
	if res.MatchedCount == 0 {
		return nil, domain.ErrUserNotFound
	}
	return user.Clone(), nil
}

// Delete removes the user and returns the document as it was stored.
func (r *UserRepository) Delete(ctx context.Context, cmd domain.DeleteCommand) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(cmd.Entity().ID)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDocument
	if err := r.col.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, dbError("delete user", err)
	}
	return doc.toDomain(), nil
}

func buildUserFilter(q domain.UserQuery) bson.M {
	filter := bson.M{}
	if q.Username != "" {
		filter["username"] = primitive.Regex{Pattern: regexp.QuoteMeta(q.Username), Options: "i"}
	}
	if q.Email != "" {
		filter["email"] = q.Email
	}
	if q.Role != "" {
		filter["roles"] = q.Role
	}
	if q.Application != "" {
		filter["applications"] = q.Application
	}
	return filter
}

func findOptions(q domain.UserQuery) *options.FindOptions {
	field, asc := q.SortField()
	dir := 1
	if !asc {
		dir = -1
	}
	return options.Find().
		SetSort(bson.D{{Key: field, Value: dir}}).
		SetSkip(q.Skip()).
		SetLimit(int64(q.Limit))
}

func fromDomain(u *domain.User) userDocument {
	doc := userDocument{
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Applications: u.Applications,
		Roles:        u.Roles,
	}
	if doc.Applications == nil {
		doc.Applications = []string{}
	}
	if doc.Roles == nil {
		doc.Roles = []string{}
	}
	if oid, err := primitive.ObjectIDFromHex(u.ID); err == nil {
		doc.ID = oid
	}
	return doc
}

func (d userDocument) toDomain() *domain.User {
	u := &domain.User{
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Applications: d.Applications,
		Roles:        d.Roles,
	}
	if !d.ID.IsZero() {
		u.ID = d.ID.Hex()
	}
	if u.Applications == nil {
		u.Applications = []string{}
	}
	if u.Roles == nil {
		u.Roles = []string{}
	}
	return u
}

func dbError(op string, err error) error {
	return &domain.DatabaseError{Op: op, Err: err}
}
