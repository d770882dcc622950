package clientstate

import (
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrItemNotFound is returned when a cart line does not exist.
var ErrItemNotFound = errors.New("cart item not found")

// CartItem is one line of the cart: a product snapshot plus quantity and
// customization.
type CartItem struct {
	ID                 string          `json:"id"`
	CartItemID         string          `json:"cartItemId,omitempty"`
	Name               string          `json:"name"`
	Price              decimal.Decimal `json:"price"`
	Quantity           int             `json:"quantity"`
	RestaurantID       string          `json:"restaurant_id"`
	RemovedIngredients []string        `json:"removedIngredients,omitempty"`
}

// Key addresses the line inside the cart. An explicit CartItemID wins;
// otherwise the product id plus the sorted removed ingredients.
func (c CartItem) Key() string {
	if c.CartItemID != "" {
		return c.CartItemID
	}
	if len(c.RemovedIngredients) == 0 {
		return c.ID
	}
	removed := append([]string(nil), c.RemovedIngredients...)
	sort.Strings(removed)
	return c.ID + "|" + strings.Join(removed, ",")
}

// LineTotal is price times quantity.
func (c CartItem) LineTotal() decimal.Decimal {
	return c.Price.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// AddItem merges item into cart. Lines with the same product and the same
// customization are merged by summing quantities; a line carrying an
// explicit CartItemID only merges with a line holding that same id.
func AddItem(cart []CartItem, item CartItem) []CartItem {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	out := append([]CartItem(nil), cart...)
	key := item.Key()
	for i := range out {
		if out[i].Key() == key {
			out[i].Quantity += item.Quantity
			return out
		}
	}
	return append(out, item)
}

// SetQuantity sets the quantity of the line addressed by key, never below 1.
func SetQuantity(cart []CartItem, key string, quantity int) ([]CartItem, error) {
	if quantity < 1 {
		quantity = 1
	}
	out := append([]CartItem(nil), cart...)
	for i := range out {
		if out[i].Key() == key {
			out[i].Quantity = quantity
			return out, nil
		}
	}
	return nil, ErrItemNotFound
}

// RemoveItem drops the line addressed by key.
func RemoveItem(cart []CartItem, key string) ([]CartItem, error) {
	out := make([]CartItem, 0, len(cart))
	found := false
	for _, line := range cart {
		if line.Key() == key {
			found = true
			continue
		}
		out = append(out, line)
	}
	if !found {
		return nil, ErrItemNotFound
	}
	return out, nil
}

// Subtotal sums the line totals of cart.
func Subtotal(cart []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, line := range cart {
		total = total.Add(line.LineTotal())
	}
	return total
}

// Count sums the quantities of cart, as shown on the cart badge.
func Count(cart []CartItem) int {
	n := 0
	for _, line := range cart {
		n += line.Quantity
	}
	return n
}
