package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	inErrors "github.com/skatehub/ecommerce/internal/common/errors"
)

func setupCartStore(t *testing.T) *CartStore {
	t.Helper()
	c := context.Background()

	mongoContainer, err := mongodb.Run(c, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(c)
	require.NoError(t, err)

	client, err := mongo.Connect(c, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := client.Disconnect(context.Background()); err != nil {
			t.Logf("failed to disconnect client: %s", err)
		}
	})
	require.NoError(t, client.Ping(c, nil))

	store := NewCartStore(client.Database("ecommerce_test"))
	require.NoError(t, store.EnsureIndexes(c))
	return store
}

func TestGetOrCreateReturnsEmptyCartForNewUser(t *testing.T) {
	store := setupCartStore(t)
	c := context.Background()

	cart, err := store.GetOrCreate(c, "user-1")
	require.NoError(t, err)

	assert.False(t, cart.ID.IsZero())
	assert.Equal(t, "user-1", cart.UserID)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0, cart.TotalItems)
	assert.False(t, cart.CreatedAt.IsZero())
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	store := setupCartStore(t)
	c := context.Background()

	first, err := store.GetOrCreate(c, "user-1")
	require.NoError(t, err)
	second, err := store.GetOrCreate(c, "user-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestGetOrCreateUnderConcurrencyCreatesSingleCart(t *testing.T) {
	store := setupCartStore(t)
	c := context.Background()

	workers := 8
	ids := make([]primitive.ObjectID, workers)
	errs := make([]error, workers)
	wg := sync.WaitGroup{}
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cart, err := store.GetOrCreate(c, "user-1")
			errs[i] = err
			if err == nil {
				ids[i] = cart.ID
			}
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	count, err := store.collection.CountDocuments(c, bson.M{"user_id": "user-1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestSavePersistsItemsAndRecomputedTotals(t *testing.T) {
	store := setupCartStore(t)
	c := context.Background()

	cart, err := store.GetOrCreate(c, "user-1")
	require.NoError(t, err)

	cart.AddItem(primitive.NewObjectID(), 2, decimal.RequireFromString("79.99"))
	cart.AddItem(primitive.NewObjectID(), 1, decimal.RequireFromString("24.50"))
	require.NoError(t, store.Save(c, cart))

	stored, err := store.GetOrCreate(c, "user-1")
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, 3, stored.TotalItems)
	assert.True(t, decimal.RequireFromString("184.48").Equal(ToDecimal(stored.TotalAmount)))
	assert.True(t, stored.UpdatedAt.After(stored.CreatedAt) || stored.UpdatedAt.Equal(stored.CreatedAt))
}

func TestSaveRejectsInvalidCart(t *testing.T) {
	store := setupCartStore(t)
	c := context.Background()

	cart, err := store.GetOrCreate(c, "user-1")
	require.NoError(t, err)
	cart.Items = append(cart.Items, CartItem{ProductID: primitive.NewObjectID(), Quantity: 0})

	err = store.Save(c, cart)
	var validationErr inErrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "quantity", validationErr.Field)
}

func TestSaveFailsForUnknownUser(t *testing.T) {
	store := setupCartStore(t)
	c := context.Background()

	cart := NewCart("ghost-user")
	err := store.Save(c, cart)

	var persistenceErr inErrors.PersistenceError
	require.ErrorAs(t, err, &persistenceErr)
}

func TestSaveRoundTripsDecimalPrices(t *testing.T) {
	store := setupCartStore(t)
	c := context.Background()

	cart, err := store.GetOrCreate(c, "user-1")
	require.NoError(t, err)
	cart.AddItem(primitive.NewObjectID(), 3, decimal.RequireFromString("0.10"))
	require.NoError(t, store.Save(c, cart))

	stored, err := store.GetOrCreate(c, "user-1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.10").Equal(stored.Items[0].PriceDecimal()))
	assert.True(t, decimal.RequireFromString("0.30").Equal(ToDecimal(stored.TotalAmount)))
}
