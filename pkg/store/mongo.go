package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"Aarogya/models"
	"Aarogya/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const conversationsCollection = "conversations"

// MongoStore keeps each conversation as one document with embedded messages.
// Appends use $push, so they are atomic per document and never replace it.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    zerolog.Logger
	now    func() time.Time
}

// OpenMongo connects, pings and ensures indexes. The returned store owns the
// client's connection pool until Close.
func OpenMongo(ctx context.Context, uri, database string, log zerolog.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(database), log: log, now: time.Now}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) conversations() *mongo.Collection {
	return s.db.Collection(conversationsCollection)
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.conversations().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: failed to create indexes: %w", err)
	}
	return nil
}

func ownedFilter(id, ownerID string) bson.M {
	return bson.M{"_id": id, "owner_id": ownerID}
}

func (s *MongoStore) Create(ctx context.Context, ownerID, name string, initial []models.Message) (*models.Conversation, error) {
	defer observe("mongo", "create", time.Now())
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.New(apperr.KindValidation, "owner is required")
	}
	if len(initial) > 0 {
		if err := validateMessages(initial); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      normalizeName(name),
		Messages:  append([]models.Message{}, initial...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.conversations().InsertOne(ctx, conv); err != nil {
		return nil, s.fail("create", err)
	}
	return conv, nil
}

func (s *MongoStore) FindByIDForOwner(ctx context.Context, id, ownerID string) (*models.Conversation, error) {
	defer observe("mongo", "find", time.Now())
	var conv models.Conversation
	if err := s.conversations().FindOne(ctx, ownedFilter(id, ownerID)).Decode(&conv); err != nil {
		return nil, s.fail("find", err)
	}
	return normalized(&conv), nil
}

func (s *MongoStore) ListForOwner(ctx context.Context, ownerID string, filter ListFilter) ([]models.Conversation, error) {
	defer observe("mongo", "list", time.Now())
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := s.conversations().Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, s.fail("list", err)
	}
	var convs []models.Conversation
	if err := cur.All(ctx, &convs); err != nil {
		return nil, s.fail("list", err)
	}

	out := make([]models.Conversation, 0, len(convs))
	for i := range convs {
		if filter.matches(&convs[i]) {
			out = append(out, *normalized(&convs[i]))
		}
	}
	return out, nil
}

func (s *MongoStore) AppendMessages(ctx context.Context, id, ownerID string, msgs []models.Message) (*models.Conversation, error) {
	defer observe("mongo", "append", time.Now())
	if err := validateMessages(msgs); err != nil {
		return nil, err
	}
	update := bson.M{
		"$push": bson.M{"messages": bson.M{"$each": msgs}},
		"$set":  bson.M{"updated_at": s.now().UTC()},
	}
	return s.findAndUpdate(ctx, "append", id, ownerID, update)
}

func (s *MongoStore) Rename(ctx context.Context, id, ownerID, newName string) (*models.Conversation, error) {
	defer observe("mongo", "rename", time.Now())
	name, err := validateRename(newName)
	if err != nil {
		return nil, err
	}
	update := bson.M{"$set": bson.M{"name": name, "updated_at": s.now().UTC()}}
	return s.findAndUpdate(ctx, "rename", id, ownerID, update)
}

func (s *MongoStore) findAndUpdate(ctx context.Context, op, id, ownerID string, update bson.M) (*models.Conversation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var conv models.Conversation
	if err := s.conversations().FindOneAndUpdate(ctx, ownedFilter(id, ownerID), update, opts).Decode(&conv); err != nil {
		return nil, s.fail(op, err)
	}
	return normalized(&conv), nil
}

func (s *MongoStore) DeleteOne(ctx context.Context, id, ownerID string) (bool, error) {
	defer observe("mongo", "delete", time.Now())
	res, err := s.conversations().DeleteOne(ctx, ownedFilter(id, ownerID))
	if err != nil {
		return false, s.fail("delete", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) DeleteAllForOwner(ctx context.Context, ownerID string) (int64, error) {
	defer observe("mongo", "delete_all", time.Now())
	res, err := s.conversations().DeleteMany(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return 0, s.fail("delete_all", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return s.fail("ping", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) fail(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.New(apperr.KindNotFound, "conversation not found")
	}
	s.log.Error().Err(err).Str("op", op).Msg("store operation failed")
	return apperr.Wrap(apperr.KindStoreUnavailable, "store unavailable", err)
}

func normalized(c *models.Conversation) *models.Conversation {
	if c.Messages == nil {
		c.Messages = []models.Message{}
	}
	return c
}
