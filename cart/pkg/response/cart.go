package response

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Items       []CartItem      `json:"items"`
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type CartItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	AddedAt   time.Time       `json:"addedAt"`
}

type CartStats struct {
	TotalItems       int             `json:"totalItems"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	UniqueProducts   int             `json:"uniqueProducts"`
	AverageItemPrice decimal.Decimal `json:"averageItemPrice"`
}

const (
	ReasonNotFound          = "not_found"
	ReasonInsufficientStock = "insufficient_stock"
)

type UnavailableItem struct {
	ProductID         string `json:"productId"`
	ProductName       string `json:"productName,omitempty"`
	RequestedQuantity int    `json:"requestedQuantity,omitempty"`
	AvailableStock    int    `json:"availableStock,omitempty"`
	Reason            string `json:"reason"`
}

type Availability struct {
	Available        bool              `json:"available"`
	UnavailableItems []UnavailableItem `json:"unavailableItems"`
	TotalItems       int               `json:"totalItems"`
}
