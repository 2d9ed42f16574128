package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/emmanuelselicour/ES-Company-API/internal/domain"
)

// mongoStockLedger reads and adjusts stock on the products collection. The
// collection is owned by the catalog; this ledger only touches the stock and
// status fields, and only through single-document atomic updates.
type mongoStockLedger struct {
	collection *mongo.Collection
}

func NewMongoStockLedger(db *mongo.Database) StockLedger {
	return &mongoStockLedger{
		collection: db.Collection("products"),
	}
}

func (m *mongoStockLedger) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var product domain.Product

	err := m.collection.FindOne(ctx, bson.M{"_id": productID}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &product, nil
}

func (m *mongoStockLedger) CheckAvailable(ctx context.Context, productID string, quantity int) (bool, error) {
	product, err := m.GetProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	return product.Purchasable() && product.Stock >= quantity, nil
}

// Reserve decrements stock by quantity only if at least that much is
// available. Decrement and status derivation (out_of_stock at zero) happen in
// one atomic document write; there is no read-compare-write window.
func (m *mongoStockLedger) Reserve(ctx context.Context, productID string, quantity int) error {
	filter := bson.M{"_id": productID, "stock": bson.M{"$gte": quantity}}
	remaining := bson.M{"$subtract": bson.A{"$stock", quantity}}
	update := bson.A{
		bson.M{"$set": bson.M{
			"stock": remaining,
			"status": bson.M{"$cond": bson.A{
				bson.M{"$lte": bson.A{remaining, 0}},
				string(domain.ProductOutOfStock),
				"$status",
			}},
		}},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}
	if result.MatchedCount == 0 {
		// Either the product is gone or the stock precondition failed.
		if _, getErr := m.GetProduct(ctx, productID); getErr != nil {
			return getErr
		}
		return ErrInsufficientStock
	}

	return nil
}

// Release returns quantity to the pool and flips an out_of_stock product back
// to active in the same atomic write. It is unconditional; exactly-once use
// per cancelled order is enforced by the order status machine.
func (m *mongoStockLedger) Release(ctx context.Context, productID string, quantity int) error {
	restored := bson.M{"$add": bson.A{"$stock", quantity}}
	update := bson.A{
		bson.M{"$set": bson.M{
			"stock": restored,
			"status": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$status", string(domain.ProductOutOfStock)}},
					bson.M{"$gt": bson.A{restored, 0}},
				}},
				string(domain.ProductActive),
				"$status",
			}},
		}},
	}

	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": productID}, update)
	if err != nil {
		return fmt.Errorf("failed to release stock: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProductNotFound
	}

	return nil
}
