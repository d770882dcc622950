package dto

import (
	"github.com/shopspring/decimal"

	"github.com/NovaByteCorp/deliverypro/internal/clientstate"
)

// CartItemRequest adds a product to the cart.
type CartItemRequest struct {
	ID                 string          `json:"id" validate:"required"`
	CartItemID         string          `json:"cartItemId"`
	Name               string          `json:"name"`
	Price              decimal.Decimal `json:"price"`
	Quantity           int             `json:"quantity" validate:"gte=0,lte=99"`
	RestaurantID       string          `json:"restaurant_id"`
	RemovedIngredients []string        `json:"removedIngredients" validate:"omitempty,dive,required"`
}

// ToCartItem converts the request into a cart line.
func (r CartItemRequest) ToCartItem() clientstate.CartItem {
	return clientstate.CartItem{
		ID:                 r.ID,
		CartItemID:         r.CartItemID,
		Name:               r.Name,
		Price:              r.Price,
		Quantity:           r.Quantity,
		RestaurantID:       r.RestaurantID,
		RemovedIngredients: r.RemovedIngredients,
	}
}

// ToCartItems converts a list of requests.
func ToCartItems(reqs []CartItemRequest) []clientstate.CartItem {
	out := make([]clientstate.CartItem, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.ToCartItem())
	}
	return out
}

// QuantityRequest sets the quantity of a cart line. Values below one are
// raised to one.
type QuantityRequest struct {
	Quantity int `json:"quantity" validate:"lte=99"`
}

// CartResponse is the cart with derived totals.
type CartResponse struct {
	Items    []clientstate.CartItem `json:"items"`
	Count    int                    `json:"count"`
	Subtotal decimal.Decimal        `json:"subtotal"`
}

// FromCart maps a cart.
func FromCart(items []clientstate.CartItem) CartResponse {
	if items == nil {
		items = []clientstate.CartItem{}
	}
	return CartResponse{
		Items:    items,
		Count:    clientstate.Count(items),
		Subtotal: clientstate.Subtotal(items),
	}
}

// FavoriteToggleRequest flips one favorite.
type FavoriteToggleRequest struct {
	Kind string `json:"kind" validate:"required,oneof=product restaurant"`
	ID   string `json:"id" validate:"required"`
}

// FavoriteToggleResponse reports the state after the toggle.
type FavoriteToggleResponse struct {
	ID       string `json:"id"`
	Favorite bool   `json:"favorite"`
}

// FavoritesResponse lists both favorites sets.
type FavoritesResponse struct {
	Products    []string `json:"products"`
	Restaurants []string `json:"restaurants"`
}
