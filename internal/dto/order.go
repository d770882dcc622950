package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/NovaByteCorp/deliverypro/internal/entity"
	"github.com/NovaByteCorp/deliverypro/internal/lifecycle"
)

// OrderItemResponse is one product line of an order.
type OrderItemResponse struct {
	ID                 string          `json:"id"`
	ProductID          string          `json:"product_id"`
	ProductName        string          `json:"product_name"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	Quantity           int             `json:"quantity"`
	RemovedIngredients []string        `json:"removed_ingredients,omitempty"`
	LineTotal          decimal.Decimal `json:"line_total"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	RestaurantID    string              `json:"restaurant_id"`
	CustomerID      string              `json:"customer_id"`
	DriverID        *string             `json:"driver_id"`
	Status          string              `json:"status"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	DeliveryFee     decimal.Decimal     `json:"delivery_fee"`
	Tax             decimal.Decimal     `json:"tax"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	Notes           string              `json:"notes,omitempty"`
	DeliveryAddress string              `json:"delivery_address,omitempty"`
	PaymentMethod   string              `json:"payment_method,omitempty"`
	CreatedDate     time.Time           `json:"created_date"`
	UpdatedDate     time.Time           `json:"updated_date"`
	ReadyAt         *time.Time          `json:"ready_at,omitempty"`
	PickedUpAt      *time.Time          `json:"picked_up_at,omitempty"`
	ConfirmedAt     *time.Time          `json:"confirmed_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
	Items           []OrderItemResponse `json:"items,omitempty"`
	AllowedActions  []string            `json:"allowed_actions,omitempty"`
}

// FromOrder maps an order entity.
func FromOrder(o *entity.Order) OrderResponse {
	out := OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		RestaurantID:    o.RestaurantID,
		CustomerID:      o.CustomerID,
		DriverID:        o.DriverID,
		Status:          string(o.Status),
		Subtotal:        o.Subtotal,
		DeliveryFee:     o.DeliveryFee,
		Tax:             o.Tax,
		TotalAmount:     o.TotalAmount,
		Notes:           o.Notes,
		DeliveryAddress: o.DeliveryAddress,
		PaymentMethod:   o.PaymentMethod,
		CreatedDate:     o.CreatedDate,
		UpdatedDate:     o.UpdatedDate,
		ReadyAt:         o.ReadyAt,
		PickedUpAt:      o.PickedUpAt,
		ConfirmedAt:     o.ConfirmedAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, OrderItemResponse{
			ID:                 it.ID,
			ProductID:          it.ProductID,
			ProductName:        it.ProductName,
			UnitPrice:          it.UnitPrice,
			Quantity:           it.Quantity,
			RemovedIngredients: it.RemovedIngredients,
			LineTotal:          it.LineTotal,
		})
	}
	return out
}

// FromOrders maps a list, never returning nil.
func FromOrders(orders []*entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, FromOrder(o))
	}
	return out
}

// WithActions attaches the actions the caller may take next.
func (r OrderResponse) WithActions(actions []lifecycle.Action) OrderResponse {
	r.AllowedActions = make([]string, 0, len(actions))
	for _, a := range actions {
		r.AllowedActions = append(r.AllowedActions, string(a))
	}
	return r
}

// SummaryResponse aggregates a customer's orders.
type SummaryResponse struct {
	Total      int             `json:"total"`
	ByStatus   map[string]int  `json:"by_status"`
	ByBucket   map[string]int  `json:"by_bucket"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

// FromSummary maps a lifecycle summary.
func FromSummary(s lifecycle.Summary) SummaryResponse {
	out := SummaryResponse{
		Total:      s.Total,
		ByStatus:   make(map[string]int, len(s.ByStatus)),
		ByBucket:   make(map[string]int, len(s.ByBucket)),
		TotalSpent: s.TotalSpent,
	}
	for k, v := range s.ByStatus {
		out.ByStatus[string(k)] = v
	}
	for k, v := range s.ByBucket {
		out.ByBucket[string(k)] = v
	}
	return out
}

// CustomerOrdersResponse is the customer order history page.
type CustomerOrdersResponse struct {
	Orders  []OrderResponse `json:"orders"`
	Summary SummaryResponse `json:"summary"`
}

// BoardResponse is the driver dashboard.
type BoardResponse struct {
	Available           []OrderResponse `json:"available"`
	PendingConfirmation []OrderResponse `json:"pending_confirmation"`
	Active              []OrderResponse `json:"active"`
}

// CheckoutRequest places an order. Items overrides the session cart.
type CheckoutRequest struct {
	Items           []CartItemRequest `json:"items" validate:"omitempty,dive"`
	DeliveryAddress string            `json:"delivery_address" validate:"max=500"`
	PaymentMethod   string            `json:"payment_method" validate:"max=50"`
	Notes           string            `json:"notes" validate:"max=1000"`
}

// RejectRequest carries the optional reason a driver gives back an order.
type RejectRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// QuoteRequest prices lines without placing an order. Empty means the
// session cart.
type QuoteRequest struct {
	Items []CartItemRequest `json:"items" validate:"omitempty,dive"`
}

// QuoteResponse is the money breakdown of a prospective order.
type QuoteResponse struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}
