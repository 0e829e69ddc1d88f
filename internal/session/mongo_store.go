package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "sessions"

type sessionDocument struct {
	ID        string    `bson:"_id"`
	User      User      `bson:"user"`
	CreatedAt time.Time `bson:"createdAt"`
	Expires   time.Time `bson:"expires"`
}

// MongoStore keeps sessions in a MongoDB collection. A TTL index on
// "expires" lets the server reap stale documents; reads also check expiry
// because the TTL monitor only runs periodically.
type MongoStore struct {
	coll *mongo.Collection
	nowF func() time.Time
}

// NewMongoStore builds a Mongo-backed session store.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		coll: db.Collection(mongoCollection),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the TTL index on the expires field.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_ttl"),
	})
	if err != nil {
		return fmt.Errorf("create sessions index: %w", err)
	}
	return nil
}

func (s *MongoStore) Save(ctx context.Context, sess Session) error {
	doc := sessionDocument{ID: sess.ID, User: sess.User, CreatedAt: sess.CreatedAt.UTC(), Expires: sess.ExpiresAt.UTC()}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": sess.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (Session, error) {
	var doc sessionDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": id, "expires": bson.M{"$gt": s.nowF()}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	return Session{ID: doc.ID, User: doc.User, CreatedAt: doc.CreatedAt.UTC(), ExpiresAt: doc.Expires.UTC()}, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Purge removes sessions expired at now ahead of the TTL monitor.
func (s *MongoStore) Purge(ctx context.Context, now time.Time) (int, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"expires": bson.M{"$lte": now}})
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return int(res.DeletedCount), nil
}
