package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/skatehub/ecommerce/cart/internal/common/otel"
	"github.com/skatehub/ecommerce/cart/internal/product"
	"github.com/skatehub/ecommerce/cart/internal/repository"
	"github.com/skatehub/ecommerce/cart/pkg/response"
	inErrors "github.com/skatehub/ecommerce/internal/common/errors"
	"github.com/skatehub/ecommerce/internal/log"
)

// Store is the cart persistence surface the service consumes.
type Store interface {
	GetOrCreate(c context.Context, userID string) (*repository.Cart, error)
	Save(c context.Context, cart *repository.Cart) error
}

// Locker serializes cart mutations per user.
type Locker interface {
	Acquire(c context.Context, userId string) (func(context.Context) error, error)
}

// Reconciler keeps a cart's price/stock snapshot consistent with the live
// catalog. Reconciliation is lazy and best-effort: no product is locked while
// a cart is read, and a stock check and the following save are two separate
// operations. Stock can change in between; that race is accepted at this
// layer, true reservation belongs to checkout.
type Reconciler struct {
	store  Store
	lookup product.Lookup
}

func NewReconciler(store Store, lookup product.Lookup) Reconciler {
	return Reconciler{store: store, lookup: lookup}
}

// CleanInvalidItems drops every line item whose product no longer exists.
// The cart is persisted only when at least one item was dropped.
func (r Reconciler) CleanInvalidItems(
	c context.Context,
	cart *repository.Cart,
) (*repository.Cart, error) {
	c, span := otel.Tracer.Start(c, "Reconciler CleanInvalidItems")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Reconciler CleanInvalidItems").
		Str(log.KeyUserID, cart.UserID).
		Logger()

	valid := make([]repository.CartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		_, err := r.lookup.FindById(c, item.ProductID.Hex())
		if errors.Is(err, inErrors.ErrProductNotFound) {
			logger.Info().
				Str(log.KeyProductID, item.ProductID.Hex()).
				Msg("dropping item for deleted product")
			continue
		}
		if err != nil {
			err = fmt.Errorf(
				"failed looking up productId=%s with error=%w",
				item.ProductID.Hex(),
				err,
			)
			inErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return nil, err
		}
		valid = append(valid, item)
	}

	if len(valid) == len(cart.Items) {
		return cart, nil
	}

	dropped := len(cart.Items) - len(valid)
	cart.Items = valid
	if err := r.store.Save(c, cart); err != nil {
		return nil, err
	}
	logger.Info().Msgf("dropped %d invalid items", dropped)
	return cart, nil
}

// RefreshPrices overwrites each item's snapshot price with the product's live
// price when they differ. Carts always reflect current pricing until
// checkout; a price change after add is applied retroactively. The cart is
// persisted only when a price actually changed.
func (r Reconciler) RefreshPrices(
	c context.Context,
	cart *repository.Cart,
) (*repository.Cart, error) {
	c, span := otel.Tracer.Start(c, "Reconciler RefreshPrices")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Reconciler RefreshPrices").
		Str(log.KeyUserID, cart.UserID).
		Logger()

	changed := false
	for idx := range cart.Items {
		item := &cart.Items[idx]
		current, err := r.lookup.FindById(c, item.ProductID.Hex())
		if errors.Is(err, inErrors.ErrProductNotFound) {
			continue
		}
		if err != nil {
			err = fmt.Errorf(
				"failed looking up productId=%s with error=%w",
				item.ProductID.Hex(),
				err,
			)
			inErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return nil, err
		}
		if !current.Price.Equal(item.PriceDecimal()) {
			logger.Info().
				Str(log.KeyProductID, item.ProductID.Hex()).
				Msgf(
					"refreshing price %s -> %s",
					item.PriceDecimal().String(),
					current.Price.String(),
				)
			item.Price = repository.ToDecimal128(current.Price)
			changed = true
		}
	}

	if !changed {
		return cart, nil
	}

	if err := r.store.Save(c, cart); err != nil {
		return nil, err
	}
	logger.Info().Msg("refreshed cart prices")
	return cart, nil
}

// ValidateStockForAdd checks that the catalog can supply requestedTotal units
// of the product, where requestedTotal already includes whatever the cart
// holds. Returns the product so the caller can capture the current price.
func (r Reconciler) ValidateStockForAdd(
	c context.Context,
	productId string,
	requestedTotal int,
	inCart int,
) (product.Product, error) {
	c, span := otel.Tracer.Start(c, "Reconciler ValidateStockForAdd")
	defer span.End()

	p, err := r.lookup.FindById(c, productId)
	if err != nil {
		inErrors.HandleError(err, span)
		return product.Product{}, err
	}
	if p.Stock < requestedTotal {
		err = inErrors.InsufficientStockError{
			ProductId: productId,
			Available: p.Stock,
			InCart:    inCart,
			Requested: requestedTotal,
		}
		inErrors.HandleError(err, span)
		return product.Product{}, err
	}
	return p, nil
}

// ValidateStockForTotal checks the absolute quantity an item should end up at
// against current stock. Cart contents are not a reservation: stock is always
// compared to the live catalog value, never decremented by other carts.
func (r Reconciler) ValidateStockForTotal(
	c context.Context,
	cart *repository.Cart,
	productId string,
	desiredTotal int,
) (product.Product, error) {
	c, span := otel.Tracer.Start(c, "Reconciler ValidateStockForTotal")
	defer span.End()

	p, err := r.lookup.FindById(c, productId)
	if err != nil {
		inErrors.HandleError(err, span)
		return product.Product{}, err
	}

	inCart := 0
	for _, item := range cart.Items {
		if item.ProductID.Hex() == productId {
			inCart = item.Quantity
			break
		}
	}

	if p.Stock < desiredTotal {
		err = inErrors.InsufficientStockError{
			ProductId: productId,
			Available: p.Stock,
			InCart:    inCart,
			Requested: desiredTotal,
		}
		inErrors.HandleError(err, span)
		return product.Product{}, err
	}
	return p, nil
}

// CheckAvailability re-validates existence and stock for every item and
// returns the full violation list, not just the first. Non-mutating.
func (r Reconciler) CheckAvailability(
	c context.Context,
	cart *repository.Cart,
) ([]response.UnavailableItem, error) {
	c, span := otel.Tracer.Start(c, "Reconciler CheckAvailability")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Reconciler CheckAvailability").
		Str(log.KeyUserID, cart.UserID).
		Logger()

	unavailable := []response.UnavailableItem{}
	for _, item := range cart.Items {
		p, err := r.lookup.FindById(c, item.ProductID.Hex())
		if errors.Is(err, inErrors.ErrProductNotFound) {
			unavailable = append(unavailable, response.UnavailableItem{
				ProductID: item.ProductID.Hex(),
				Reason:    response.ReasonNotFound,
			})
			continue
		}
		if err != nil {
			err = fmt.Errorf(
				"failed looking up productId=%s with error=%w",
				item.ProductID.Hex(),
				err,
			)
			inErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return nil, err
		}
		if p.Stock < item.Quantity {
			unavailable = append(unavailable, response.UnavailableItem{
				ProductID:         item.ProductID.Hex(),
				ProductName:       p.Name,
				RequestedQuantity: item.Quantity,
				AvailableStock:    p.Stock,
				Reason:            response.ReasonInsufficientStock,
			})
		}
	}

	return unavailable, nil
}
