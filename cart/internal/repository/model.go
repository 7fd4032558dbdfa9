package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	inErrors "github.com/skatehub/ecommerce/internal/common/errors"
)

// Cart is the persisted per-user cart document. TotalItems and TotalAmount are
// derived from Items and recomputed on every save; they must never be written
// independently.
type Cart struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	UserID      string               `bson:"user_id"`
	Items       []CartItem           `bson:"items"`
	TotalItems  int                  `bson:"total_items"`
	TotalAmount primitive.Decimal128 `bson:"total_amount"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

// CartItem is embedded in a Cart. Price is a snapshot of the product's unit
// price at add or last reconciliation time, not a live reference.
type CartItem struct {
	ProductID primitive.ObjectID   `bson:"product_id"`
	Quantity  int                  `bson:"quantity"`
	Price     primitive.Decimal128 `bson:"price"`
	AddedAt   time.Time            `bson:"added_at"`
}

func NewCart(userID string) *Cart {
	now := time.Now()
	return &Cart{
		UserID:      userID,
		Items:       []CartItem{},
		TotalItems:  0,
		TotalAmount: ToDecimal128(decimal.Zero),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func ToDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, _ := primitive.ParseDecimal128(d.String())
	return v
}

func ToDecimal(d primitive.Decimal128) decimal.Decimal {
	v, err := decimal.NewFromString(d.String())
	if err != nil {
		return decimal.Zero
	}
	return v
}

func (i CartItem) PriceDecimal() decimal.Decimal { return ToDecimal(i.Price) }

// Item returns the line item holding productId, if any.
func (c *Cart) Item(productId primitive.ObjectID) (*CartItem, bool) {
	for idx := range c.Items {
		if c.Items[idx].ProductID == productId {
			return &c.Items[idx], true
		}
	}
	return nil, false
}

// AddItem merges quantity into an existing line item for productId or appends
// a new one priced at the given snapshot. At most one item per product may
// exist in a cart.
func (c *Cart) AddItem(productId primitive.ObjectID, quantity int, price decimal.Decimal) {
	if item, ok := c.Item(productId); ok {
		item.Quantity += quantity
		item.AddedAt = time.Now()
		return
	}
	c.Items = append(c.Items, CartItem{
		ProductID: productId,
		Quantity:  quantity,
		Price:     ToDecimal128(price),
		AddedAt:   time.Now(),
	})
}

// UpdateItemQuantity sets the absolute quantity of the line item for
// productId. Quantity zero deletes the item; an item with quantity 0 must
// never be stored. Returns false when the product is not in the cart.
func (c *Cart) UpdateItemQuantity(productId primitive.ObjectID, quantity int) bool {
	if _, ok := c.Item(productId); !ok {
		return false
	}
	if quantity <= 0 {
		c.RemoveItem(productId)
		return true
	}
	item, _ := c.Item(productId)
	item.Quantity = quantity
	item.AddedAt = time.Now()
	return true
}

// RemoveItem deletes the line item for productId. Returns false when absent.
func (c *Cart) RemoveItem(productId primitive.ObjectID) bool {
	for idx, item := range c.Items {
		if item.ProductID == productId {
			c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the item set. The cart document itself persists.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
}

// RecomputeTotals rebuilds the derived aggregates from Items. TotalAmount is
// rounded to 2 decimal places.
func (c *Cart) RecomputeTotals() {
	totalItems := 0
	totalAmount := decimal.Zero
	for _, item := range c.Items {
		totalItems += item.Quantity
		totalAmount = totalAmount.Add(
			item.PriceDecimal().Mul(decimal.NewFromInt(int64(item.Quantity))),
		)
	}
	c.TotalItems = totalItems
	c.TotalAmount = ToDecimal128(totalAmount.Round(2))
}

// Validate rejects carts whose items violate the data-model invariants.
func (c *Cart) Validate() error {
	if c.UserID == "" {
		return inErrors.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	seen := map[primitive.ObjectID]struct{}{}
	for _, item := range c.Items {
		if item.ProductID.IsZero() {
			return inErrors.ValidationError{Field: "productId", Reason: "must not be empty"}
		}
		if _, ok := seen[item.ProductID]; ok {
			return inErrors.ValidationError{
				Field:  "productId",
				Reason: "duplicate line item for product " + item.ProductID.Hex(),
			}
		}
		seen[item.ProductID] = struct{}{}
		if item.Quantity < 1 {
			return inErrors.ValidationError{
				Field:  "quantity",
				Reason: "must be a positive integer",
			}
		}
		if item.PriceDecimal().IsNegative() {
			return inErrors.ValidationError{Field: "price", Reason: "must not be negative"}
		}
	}
	return nil
}
