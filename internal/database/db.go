// Package database owns the MongoDB client. A Store is opened once in main,
// handed to the repositories, and closed on shutdown.
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names, one per entity.
const (
	UsersCollection         = "users"
	TuitionsCollection      = "tuitions"
	ApplicationsCollection  = "applications"
	PaymentsCollection      = "payments"
	RefreshTokensCollection = "refresh_tokens"
)

// Store wraps a connected client and the application database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to MongoDB and verifies the connection with a ping.
func Open(ctx context.Context, uri, name string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(25).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{client: client, db: client.Database(name)}, nil
}

// Close disconnects the client. It is safe to call on a nil Store.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Collection returns a handle to the named collection.
func (s *Store) Collection(name string) *mongo.Collection { return s.db.Collection(name) }

// Ping checks that the deployment is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the indexes the invariants rely on. Creating an index
// that already exists with the same keys and options is a no-op in MongoDB.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
			{Keys: bson.D{{Key: "role", Value: 1}, {Key: "status", Value: 1}}},
		},
		TuitionsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "student_email", Value: 1}}},
		},
		ApplicationsCollection: {
			{
				Keys:    bson.D{{Key: "tuition_id", Value: 1}, {Key: "tutor_email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_tuition_tutor"),
			},
			{Keys: bson.D{{Key: "tutor_email", Value: 1}}},
		},
		PaymentsCollection: {
			{Keys: bson.D{{Key: "transaction_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_transaction")},
			{Keys: bson.D{{Key: "paid_at", Value: -1}}},
		},
		RefreshTokensCollection: {
			{Keys: bson.D{{Key: "token_hash", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_token_hash")},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}
	for coll, models := range specs {
		if _, err := s.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
