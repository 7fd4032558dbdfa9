package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skatehub/ecommerce/cart/internal/common/otel"
	"github.com/skatehub/ecommerce/cart/internal/product"
	"github.com/skatehub/ecommerce/cart/pkg/response"
	inErrors "github.com/skatehub/ecommerce/internal/common/errors"
	"github.com/skatehub/ecommerce/internal/log"
)

type CartService struct {
	store      Store
	reconciler Reconciler
	locks      Locker
}

func NewCartService(store Store, lookup product.Lookup, locks Locker) CartService {
	return CartService{
		store:      store,
		reconciler: NewReconciler(store, lookup),
		locks:      locks,
	}
}

// GetCart loads (or lazily creates) the caller's cart, reconciles it against
// the live catalog, and returns the authoritative post-reconciliation state.
// Reconciliation persists cleanups and price refreshes, so the per-user lock
// is held here too; otherwise a reconciliation save could overwrite a
// concurrent mutation with a stale item set.
func (s CartService) GetCart(
	c context.Context,
	userId string,
) (response.Cart, response.CartStats, error) {
	c, span := otel.Tracer.Start(c, "CartService GetCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService GetCart").
		Str(log.KeyUserID, userId).
		Logger()

	release, err := s.locks.Acquire(c, userId)
	if err != nil {
		err = fmt.Errorf("failed acquiring cart lock with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}
	defer func() {
		if err := release(c); err != nil {
			logger.Error().Err(err).Msg(err.Error())
		}
	}()

	logger = logger.With().Str(log.KeyProcess, "loading cart").Logger()
	logger.Info().Msg("loading cart")
	cart, err := s.store.GetOrCreate(c, userId)
	if err != nil {
		err = fmt.Errorf("failed loading cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}
	logger.Info().Msg("loaded cart")

	logger = logger.With().Str(log.KeyProcess, "reconciling cart").Logger()
	logger.Info().Msg("cleaning invalid items")
	cart, err = s.reconciler.CleanInvalidItems(c, cart)
	if err != nil {
		err = fmt.Errorf("failed cleaning invalid items with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}
	logger.Info().Msg("cleaned invalid items")

	logger.Info().Msg("refreshing prices")
	_, err = s.reconciler.RefreshPrices(c, cart)
	if err != nil {
		err = fmt.Errorf("failed refreshing prices with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}
	logger.Info().Msg("refreshed prices")

	return s.reload(c, userId)
}

// AddItem merges quantity units of the product into the cart at the product's
// current price after validating stock against what the cart already holds.
func (s CartService) AddItem(
	c context.Context,
	userId string,
	productId string,
	quantity int,
) (response.Cart, response.CartStats, error) {
	c, span := otel.Tracer.Start(c, "CartService AddItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService AddItem").
		Str(log.KeyUserID, userId).
		Str(log.KeyProductID, productId).
		Int(log.KeyQuantity, quantity).
		Logger()

	pid, err := primitive.ObjectIDFromHex(productId)
	if err != nil {
		err = inErrors.ValidationError{Field: "productId", Reason: "must be a valid id"}
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}

	release, err := s.locks.Acquire(c, userId)
	if err != nil {
		err = fmt.Errorf("failed acquiring cart lock with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}
	defer func() {
		if err := release(c); err != nil {
			logger.Error().Err(err).Msg(err.Error())
		}
	}()

	logger = logger.With().Str(log.KeyProcess, "loading cart").Logger()
	logger.Info().Msg("loading cart")
	cart, err := s.store.GetOrCreate(c, userId)
	if err != nil {
		err = fmt.Errorf("failed loading cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}
	logger.Info().Msg("loaded cart")

	inCart := 0
	if item, ok := cart.Item(pid); ok {
		inCart = item.Quantity
	}

	logger = logger.With().Str(log.KeyProcess, "validating stock").Logger()
	logger.Info().Msgf("validating stock for total quantity=%d", inCart+quantity)
	p, err := s.reconciler.ValidateStockForAdd(c, productId, inCart+quantity, inCart)
	if err != nil {
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}
	logger.Info().Msg("validated stock")

	logger = logger.With().Str(log.KeyProcess, "saving cart").Logger()
	logger.Info().Msg("adding item to cart")
	cart.AddItem(pid, quantity, p.Price)
	if err := s.store.Save(c, cart); err != nil {
		err = fmt.Errorf("failed saving cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}
	logger.Info().Msg("added item to cart")

	return s.reload(c, userId)
}

// UpdateItem sets the absolute quantity for a product already in the cart.
// Quantity 0 removes the item; the removed return reports which happened.
func (s CartService) UpdateItem(
	c context.Context,
	userId string,
	productId string,
	quantity int,
) (cart response.Cart, stats response.CartStats, removed bool, err error) {
	c, span := otel.Tracer.Start(c, "CartService UpdateItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService UpdateItem").
		Str(log.KeyUserID, userId).
		Str(log.KeyProductID, productId).
		Int(log.KeyQuantity, quantity).
		Logger()

	pid, err := primitive.ObjectIDFromHex(productId)
	if err != nil {
		err = inErrors.ValidationError{Field: "productId", Reason: "must be a valid id"}
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, false, err
	}

	release, err := s.locks.Acquire(c, userId)
	if err != nil {
		err = fmt.Errorf("failed acquiring cart lock with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, false, err
	}
	defer func() {
		if err := release(c); err != nil {
			logger.Error().Err(err).Msg(err.Error())
		}
	}()

	logger = logger.With().Str(log.KeyProcess, "loading cart").Logger()
	logger.Info().Msg("loading cart")
	stored, err := s.store.GetOrCreate(c, userId)
	if err != nil {
		err = fmt.Errorf("failed loading cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, false, err
	}
	logger.Info().Msg("loaded cart")

	if _, ok := stored.Item(pid); !ok {
		err = inErrors.ErrCartItemNotFound
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, false, err
	}

	if quantity > 0 {
		logger = logger.With().Str(log.KeyProcess, "validating stock").Logger()
		logger.Info().Msgf("validating stock for total quantity=%d", quantity)
		_, err = s.reconciler.ValidateStockForTotal(c, stored, productId, quantity)
		if err != nil {
			inErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.Cart{}, response.CartStats{}, false, err
		}
		logger.Info().Msg("validated stock")
	}

	logger = logger.With().Str(log.KeyProcess, "saving cart").Logger()
	removed = quantity == 0
	stored.UpdateItemQuantity(pid, quantity)
	if err := s.store.Save(c, stored); err != nil {
		err = fmt.Errorf("failed saving cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, false, err
	}
	logger.Info().Msg("saved cart")

	cart, stats, err = s.reload(c, userId)
	return cart, stats, removed, err
}

// RemoveItem deletes a product's line item from the cart.
func (s CartService) RemoveItem(
	c context.Context,
	userId string,
	productId string,
) (response.Cart, response.CartStats, error) {
	c, span := otel.Tracer.Start(c, "CartService RemoveItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService RemoveItem").
		Str(log.KeyUserID, userId).
		Str(log.KeyProductID, productId).
		Logger()

	pid, err := primitive.ObjectIDFromHex(productId)
	if err != nil {
		err = inErrors.ValidationError{Field: "productId", Reason: "must be a valid id"}
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}

	release, err := s.locks.Acquire(c, userId)
	if err != nil {
		err = fmt.Errorf("failed acquiring cart lock with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}
	defer func() {
		if err := release(c); err != nil {
			logger.Error().Err(err).Msg(err.Error())
		}
	}()

	logger = logger.With().Str(log.KeyProcess, "loading cart").Logger()
	logger.Info().Msg("loading cart")
	cart, err := s.store.GetOrCreate(c, userId)
	if err != nil {
		err = fmt.Errorf("failed loading cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}
	logger.Info().Msg("loaded cart")

	if ok := cart.RemoveItem(pid); !ok {
		err = inErrors.ErrCartItemNotFound
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "saving cart").Logger()
	logger.Info().Msg("saving cart")
	if err := s.store.Save(c, cart); err != nil {
		err = fmt.Errorf("failed saving cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}
	logger.Info().Msg("saved cart")

	return s.reload(c, userId)
}

// ClearCart empties the item set. The cart document itself is never deleted.
func (s CartService) ClearCart(
	c context.Context,
	userId string,
) (response.Cart, response.CartStats, error) {
	c, span := otel.Tracer.Start(c, "CartService ClearCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService ClearCart").
		Str(log.KeyUserID, userId).
		Logger()

	release, err := s.locks.Acquire(c, userId)
	if err != nil {
		err = fmt.Errorf("failed acquiring cart lock with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}
	defer func() {
		if err := release(c); err != nil {
			logger.Error().Err(err).Msg(err.Error())
		}
	}()

	logger = logger.With().Str(log.KeyProcess, "clearing cart").Logger()
	logger.Info().Msg("loading cart")
	cart, err := s.store.GetOrCreate(c, userId)
	if err != nil {
		err = fmt.Errorf("failed loading cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}

	cart.Clear()
	if err := s.store.Save(c, cart); err != nil {
		err = fmt.Errorf("failed saving cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartStats{}, err
	}
	logger.Info().Msg("cleared cart")

	return s.reload(c, userId)
}

// CheckAvailability re-validates every line item against the catalog and
// reports all violations. Read-only.
func (s CartService) CheckAvailability(
	c context.Context,
	userId string,
) (response.Availability, error) {
	c, span := otel.Tracer.Start(c, "CartService CheckAvailability")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService CheckAvailability").
		Str(log.KeyUserID, userId).
		Logger()

	cart, err := s.store.GetOrCreate(c, userId)
	if err != nil {
		err = fmt.Errorf("failed loading cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Availability{}, err
	}

	unavailable, err := s.reconciler.CheckAvailability(c, cart)
	if err != nil {
		err = fmt.Errorf("failed checking availability with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Availability{}, err
	}

	return response.Availability{
		Available:        len(unavailable) == 0,
		UnavailableItems: unavailable,
		TotalItems:       cart.TotalItems,
	}, nil
}

// reload re-reads the persisted cart so every response reflects authoritative
// post-mutation state rather than an echo of the request.
func (s CartService) reload(
	c context.Context,
	userId string,
) (response.Cart, response.CartStats, error) {
	cart, err := s.store.GetOrCreate(c, userId)
	if err != nil {
		return response.Cart{}, response.CartStats{}, fmt.Errorf(
			"failed reloading cart with error=%w",
			err,
		)
	}
	resp := cart.Response()
	return resp, CartStatsOf(resp), nil
}

// CartStatsOf derives the aggregate statistics for a cart. All fields are
// zero for an empty cart.
func CartStatsOf(cart response.Cart) response.CartStats {
	if len(cart.Items) == 0 {
		return response.CartStats{
			TotalAmount:      decimal.Zero,
			AverageItemPrice: decimal.Zero,
		}
	}
	average := cart.TotalAmount.
		Div(decimal.NewFromInt(int64(cart.TotalItems))).
		Round(2)
	return response.CartStats{
		TotalItems:       cart.TotalItems,
		TotalAmount:      cart.TotalAmount,
		UniqueProducts:   len(cart.Items),
		AverageItemPrice: average,
	}
}
