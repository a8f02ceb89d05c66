// Package storage holds the MongoDB backend of the participant and message
// repositories. It is selected with STORE_BACKEND=mongo.
package storage

import (
	"chat-presence/errors"
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	participantsCollection = "participants"
	messagesCollection     = "messages"
)

// Connect opens a client and pings the primary so a wrong URI fails at
// startup instead of on the first request.
func Connect(ctx context.Context, uri string, log *slog.Logger) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	log.Info("Connected to MongoDB")
	return client, nil
}

// EnsureIndexes creates the unique name index the participant repository
// relies on to reject duplicate registrations.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(participantsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return nil
}

func storeError(err error) error {
	return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
}
