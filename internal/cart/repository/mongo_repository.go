package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hana270/PFE-PROJET/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	collection *mongo.Collection
}

// NewMongoRepository creates a cart repository backed by the "carts"
// collection. Each cart is a single document so mutations are one
// atomic replace.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{collection: db.Collection("carts")}
}

func (m *MongoRepository) FindByAccount(ctx context.Context, accountID string) ([]*domain.Cart, error) {
	filter := bson.M{"account_id": accountID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cur, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find account carts: %w", err)
	}
	defer cur.Close(ctx)

	var carts []*domain.Cart
	for cur.Next(ctx) {
		var cart domain.Cart
		if err := cur.Decode(&cart); err != nil {
			return nil, fmt.Errorf("failed to decode cart: %w", err)
		}
		carts = append(carts, &cart)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return carts, nil
}

func (m *MongoRepository) FindBySession(ctx context.Context, sessionID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"session_id": sessionID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get session cart: %w", err)
	}

	return &cart, nil
}

func (m *MongoRepository) Upsert(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	filter := bson.M{"_id": cart.ID}
	update := bson.M{"$set": cart}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

func (m *MongoRepository) Delete(ctx context.Context, cartID string) error {
	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": cartID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

func (m *MongoRepository) DeleteStaleSessionCarts(ctx context.Context, threshold time.Time) (int64, error) {
	filter := bson.M{
		"account_id": bson.M{"$in": bson.A{nil, ""}},
		"updated_at": bson.M{"$lt": threshold},
	}
	res, err := m.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale session carts: %w", err)
	}
	return res.DeletedCount, nil
}

// CreateIndexes sets up the identity lookups. Called once at startup.
func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "account_id", Value: 1}}},
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
		{Keys: bson.D{{Key: "updated_at", Value: 1}}},
	}
	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
