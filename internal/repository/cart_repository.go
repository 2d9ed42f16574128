package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/emmanuelselicour/ES-Company-API/internal/domain"
)

type mongoCartRepository struct {
	collection *mongo.Collection
}

func NewMongoCartRepository(db *mongo.Database) CartRepository {
	return &mongoCartRepository{
		collection: db.Collection("carts"),
	}
}

func (m *mongoCartRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

// SaveCart writes the cart back. A cart that has never been persisted
// (Version 0) is inserted with version 1; otherwise the stored document is
// replaced only if its version still matches the one the caller read, and the
// version is bumped. A lost race surfaces as ErrVersionConflict so the caller
// can re-read and retry.
func (m *mongoCartRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()
	cart.UpdatedAt = now

	if cart.Version == 0 {
		cart.ID = uuid.NewString()
		cart.Version = 1
		cart.CreatedAt = now

		if _, err := m.collection.InsertOne(ctx, cart); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				// Another request created this user's cart first.
				return ErrVersionConflict
			}
			return fmt.Errorf("failed to insert cart: %w", err)
		}
		return nil
	}

	readVersion := cart.Version
	cart.Version++

	filter := bson.M{"user_id": cart.UserID, "version": readVersion}
	result, err := m.collection.ReplaceOne(ctx, filter, cart)
	if err != nil {
		cart.Version = readVersion
		return fmt.Errorf("failed to update cart: %w", err)
	}
	if result.MatchedCount == 0 {
		cart.Version = readVersion
		return ErrVersionConflict
	}

	return nil
}

// CreateIndexes sets up the unique one-cart-per-user constraint and a 90 day
// TTL on abandoned carts.
func (m *mongoCartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}

	return nil
}
