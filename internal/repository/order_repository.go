package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/emmanuelselicour/ES-Company-API/internal/domain"
)

type mongoOrderRepository struct {
	collection *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) OrderRepository {
	return &mongoOrderRepository{
		collection: db.Collection("orders"),
	}
}

func (m *mongoOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	if _, err := m.collection.InsertOne(ctx, order); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// DeleteOrder removes an order document. Only the checkout compensation path
// uses this; completed orders are never deleted, cancellation is a status.
func (m *mongoOrderRepository) DeleteOrder(ctx context.Context, orderID string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": orderID})
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (m *mongoOrderRepository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order

	err := m.collection.FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &order, nil
}

func (m *mongoOrderRepository) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return m.list(ctx, bson.M{"user_id": userID}, 0)
}

func (m *mongoOrderRepository) ListOrders(ctx context.Context, status domain.OrderStatus, limit int64) ([]*domain.Order, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return m.list(ctx, filter, limit)
}

func (m *mongoOrderRepository) list(ctx context.Context, filter bson.M, limit int64) ([]*domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []*domain.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}

	return orders, nil
}

// TransitionStatus swaps the order status from from to to in one conditional
// update. Losing a race (the stored status is no longer from) returns
// ErrStatusConflict instead of applying the transition twice. Moving to
// delivered or cancelled stamps the matching timestamp; cancellation also
// marks the stock as released so the quantities can never be returned twice.
func (m *mongoOrderRepository) TransitionStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, at time.Time) (*domain.Order, error) {
	set := bson.M{"status": to, "updated_at": at}
	switch to {
	case domain.OrderStatusDelivered:
		set["delivered_at"] = at
	case domain.OrderStatusCancelled:
		set["cancelled_at"] = at
		set["stock_released"] = true
	}

	filter := bson.M{"_id": orderID, "status": from}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order domain.Order
	err := m.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("failed to transition order status: %w", err)
	}

	return &order, nil
}

// CreateIndexes enforces order number uniqueness and speeds up per-user
// listings.
func (m *mongoOrderRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}

	return nil
}
