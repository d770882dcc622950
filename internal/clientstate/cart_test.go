package clientstate

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func burger(qty int, removed ...string) CartItem {
	return CartItem{
		ID:                 "p1771",
		Name:               "X-Burger",
		Price:              decimal.RequireFromString("25.00"),
		Quantity:           qty,
		RestaurantID:       "r1",
		RemovedIngredients: removed,
	}
}

func TestAddItem(t *testing.T) {
	tests := []struct {
		name      string
		cart      []CartItem
		add       CartItem
		wantLines int
		wantQty   []int
	}{
		{
			name:      "empty cart",
			add:       burger(2),
			wantLines: 1,
			wantQty:   []int{2},
		},
		{
			name:      "same product merges",
			cart:      []CartItem{burger(2)},
			add:       burger(3),
			wantLines: 1,
			wantQty:   []int{5},
		},
		{
			name:      "customized variant stays distinct",
			cart:      []CartItem{burger(2)},
			add:       burger(1, "cebola"),
			wantLines: 2,
			wantQty:   []int{2, 1},
		},
		{
			name:      "identical customization merges regardless of order",
			cart:      []CartItem{burger(1, "cebola", "tomate")},
			add:       burger(1, "tomate", "cebola"),
			wantLines: 1,
			wantQty:   []int{2},
		},
		{
			name: "explicit cart item id keeps per-add identity",
			cart: []CartItem{burger(1)},
			add: func() CartItem {
				b := burger(1)
				b.CartItemID = "line-2"
				return b
			}(),
			wantLines: 2,
			wantQty:   []int{1, 1},
		},
		{
			name:      "quantity floored at one",
			add:       burger(0),
			wantLines: 1,
			wantQty:   []int{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddItem(tt.cart, tt.add)
			if len(got) != tt.wantLines {
				t.Fatalf("lines = %d, want %d", len(got), tt.wantLines)
			}
			for i, q := range tt.wantQty {
				if got[i].Quantity != q {
					t.Errorf("line %d quantity = %d, want %d", i, got[i].Quantity, q)
				}
			}
		})
	}
}

func TestAddItem_DoesNotMutateInput(t *testing.T) {
	cart := []CartItem{burger(2)}
	_ = AddItem(cart, burger(1))
	if cart[0].Quantity != 2 {
		t.Errorf("input cart mutated: quantity = %d", cart[0].Quantity)
	}
}

func TestSetQuantityAndRemove(t *testing.T) {
	cart := []CartItem{burger(2), burger(1, "cebola")}

	got, err := SetQuantity(cart, "p1771", -4)
	if err != nil {
		t.Fatalf("SetQuantity() error = %v", err)
	}
	if got[0].Quantity != 1 {
		t.Errorf("quantity = %d, want floor 1", got[0].Quantity)
	}

	got, err = RemoveItem(got, "p1771|cebola")
	if err != nil {
		t.Fatalf("RemoveItem() error = %v", err)
	}
	if len(got) != 1 || got[0].Key() != "p1771" {
		t.Errorf("cart after remove = %+v", got)
	}

	if _, err := SetQuantity(cart, "ghost", 3); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("SetQuantity(ghost) error = %v", err)
	}
	if _, err := RemoveItem(cart, "ghost"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("RemoveItem(ghost) error = %v", err)
	}
}

func TestSubtotalAndCount(t *testing.T) {
	cart := []CartItem{burger(2), {ID: "p2", Price: decimal.RequireFromString("9.90"), Quantity: 3}}
	if got := Subtotal(cart); !got.Equal(decimal.RequireFromString("79.70")) {
		t.Errorf("Subtotal() = %s, want 79.70", got)
	}
	if got := Count(cart); got != 5 {
		t.Errorf("Count() = %d, want 5", got)
	}
}
