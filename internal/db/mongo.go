package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DatabaseName   = "notifications"
	CollectionName = "notifications"
)

// Connect creates a MongoDB client, verifies connectivity, and returns the
// notifications collection with its indexes provisioned.
func Connect(ctx context.Context, uri string) (*mongo.Client, *mongo.Collection, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping mongodb: %w", err)
	}

	coll := client.Database(DatabaseName).Collection(CollectionName)
	if err := ensureIndexes(ctx, coll); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}

	return client, coll, nil
}

// ensureIndexes provisions the compound index backing the dispatch query.
// CreateOne is idempotent: an identical existing index is a no-op.
func ensureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "priority", Value: 1},
			{Key: "status", Value: 1},
			{Key: "scheduledTime", Value: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create notifications index: %w", err)
	}
	return nil
}
