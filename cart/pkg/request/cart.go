package request

type AddCartItem struct {
	ProductId string `validate:"required"        json:"productId"`
	Quantity  *int   `validate:"omitempty,gte=1" json:"quantity"`
}

// QuantityOrDefault treats an omitted quantity as 1. An explicit 0 is invalid
// for add and rejected by validation before this is consulted.
func (r AddCartItem) QuantityOrDefault() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

type UpdateCartItem struct {
	ProductId string `validate:"required"       json:"productId"`
	Quantity  *int   `validate:"required,gte=0" json:"quantity"`
}
