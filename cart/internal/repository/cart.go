package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skatehub/ecommerce/cart/internal/common/otel"
	inErrors "github.com/skatehub/ecommerce/internal/common/errors"
	"github.com/skatehub/ecommerce/internal/log"
)

// CartStore owns the carts collection. It is the single concurrency-control
// point over a cart's contents; callers never touch the collection directly.
type CartStore struct {
	collection *mongo.Collection
}

func NewCartStore(db *mongo.Database) *CartStore {
	return &CartStore{collection: db.Collection("carts")}
}

// EnsureIndexes creates the unique user_id index that enforces the one cart
// per user invariant, plus secondary indexes on items.product_id and
// updated_at.
func (s *CartStore) EnsureIndexes(c context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "items.product_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "updated_at", Value: -1}},
		},
	}

	_, err := s.collection.Indexes().CreateMany(c, indexes)
	if err != nil {
		return fmt.Errorf("failed creating cart indexes with error=%w", err)
	}
	return nil
}

// GetOrCreate returns the cart owned by userID, creating and persisting an
// empty one when none exists. A racing create loses the unique-index race and
// falls back to re-reading the winner's document, so concurrent callers never
// produce two carts for one user.
func (s *CartStore) GetOrCreate(c context.Context, userID string) (*Cart, error) {
	c, span := otel.Tracer.Start(c, "CartStore GetOrCreate")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartStore GetOrCreate").
		Str(log.KeyUserID, userID).
		Logger()

	cart := &Cart{}
	err := s.collection.FindOne(c, bson.M{"user_id": userID}).Decode(cart)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		err = inErrors.PersistenceError{Op: "find cart", Err: err}
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	logger = logger.With().Str(log.KeyProcess, "creating cart").Logger()
	logger.Info().Msg("cart not found, creating empty cart")
	cart = NewCart(userID)
	result, err := s.collection.InsertOne(c, cart)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			logger.Info().Msg("lost create race, re-reading existing cart")
			existing := &Cart{}
			err = s.collection.FindOne(c, bson.M{"user_id": userID}).Decode(existing)
			if err != nil {
				err = inErrors.PersistenceError{Op: "re-read cart after create race", Err: err}
				inErrors.HandleError(err, span)
				logger.Error().Err(err).Msg(err.Error())
				return nil, err
			}
			return existing, nil
		}
		err = inErrors.PersistenceError{Op: "insert cart", Err: err}
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	if insertedId, ok := result.InsertedID.(primitive.ObjectID); ok {
		cart.ID = insertedId
	}
	logger.Info().Msg("created empty cart")

	return cart, nil
}

// Save persists the full item set with freshly recomputed aggregates. The
// derived totals are rebuilt here, atomically with the item mutation, so no
// caller can persist a cart whose totals disagree with its items.
func (s *CartStore) Save(c context.Context, cart *Cart) error {
	c, span := otel.Tracer.Start(c, "CartStore Save")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartStore Save").
		Str(log.KeyUserID, cart.UserID).
		Logger()

	if err := cart.Validate(); err != nil {
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	cart.RecomputeTotals()
	cart.UpdatedAt = time.Now()

	update := bson.M{"$set": bson.M{
		"items":        cart.Items,
		"total_items":  cart.TotalItems,
		"total_amount": cart.TotalAmount,
		"updated_at":   cart.UpdatedAt,
	}}
	result, err := s.collection.UpdateOne(c, bson.M{"user_id": cart.UserID}, update)
	if err != nil {
		err = inErrors.PersistenceError{Op: "save cart", Err: err}
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	if result.MatchedCount == 0 {
		err = inErrors.PersistenceError{
			Op:  "save cart",
			Err: fmt.Errorf("no cart document for userId=%s", cart.UserID),
		}
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	logger.Info().Msg("saved cart")
	return nil
}
