package repository

import (
	"github.com/skatehub/ecommerce/cart/pkg/response"
)

func (c *Cart) Response() response.Cart {
	items := make([]response.CartItem, len(c.Items))
	for i, item := range c.Items {
		items[i] = response.CartItem{
			ProductID: item.ProductID.Hex(),
			Quantity:  item.Quantity,
			Price:     item.PriceDecimal(),
			AddedAt:   item.AddedAt,
		}
	}
	return response.Cart{
		ID:          c.ID.Hex(),
		UserID:      c.UserID,
		Items:       items,
		TotalItems:  c.TotalItems,
		TotalAmount: ToDecimal(c.TotalAmount),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
