package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoCounterRepository struct {
	collection *mongo.Collection
}

func NewMongoCounterRepository(db *mongo.Database) CounterRepository {
	return &mongoCounterRepository{
		collection: db.Collection("counters"),
	}
}

// Next atomically increments the counter for key and returns the new value.
// The upsert creates the counter on first use, so the first call for a key
// yields 1. This is the primitive order numbering relies on: no
// find-last-and-increment in application code.
func (m *mongoCounterRepository) Next(ctx context.Context, key string) (int64, error) {
	filter := bson.M{"_id": key}
	update := bson.M{"$inc": bson.M{"seq": int64(1)}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return 0, fmt.Errorf("failed to advance counter %q: %w", key, err)
	}

	return doc.Seq, nil
}
