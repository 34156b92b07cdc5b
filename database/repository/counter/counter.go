package counterRepo

import (
	"context"
	"fmt"
	"time"

	"cmsledger/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CounterRepository hands out per-key sequence values.
type CounterRepository interface {
	// Next atomically increments the counter for key, creating it at 1, and returns the new value.
	Next(ctx context.Context, key string) (int64, error)
}

// maxUpsertRetries bounds retries of concurrent first-use upserts on the same key.
const maxUpsertRetries = 5

type MongoCounterRepo struct {
	coll *mongo.Collection
}

// NewMongoCounterRepo uses the invoice_counters collection. _id is the key, so no extra index is needed.
func NewMongoCounterRepo() CounterRepository {
	return &MongoCounterRepo{coll: database.Database().Collection("invoice_counters")}
}

type counterDoc struct {
	Key string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

func (r *MongoCounterRepo) Next(ctx context.Context, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	update := bson.M{
		"$inc": bson.M{"seq": 1},
		"$set": bson.M{"updatedAt": time.Now()},
	}

	var lastErr error
	for attempt := 0; attempt < maxUpsertRetries; attempt++ {
		var doc counterDoc
		err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": key}, update, opts).Decode(&doc)
		if err == nil {
			return doc.Seq, nil
		}
		// Two upserts racing on a missing key: the loser sees a duplicate _id and retries as an update.
		if !mongo.IsDuplicateKeyError(err) {
			return 0, fmt.Errorf("failed to increment counter %s: %w", key, err)
		}
		lastErr = err
	}
	return 0, fmt.Errorf("failed to increment counter %s after %d attempts: %w", key, maxUpsertRetries, lastErr)
}
