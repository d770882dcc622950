package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Order represents one customer purchase stored in the relational database.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID              string          `bun:"id,pk" json:"id"`
	OrderNumber     string          `bun:"order_number,notnull,unique" json:"order_number"`
	RestaurantID    string          `bun:"restaurant_id,notnull" json:"restaurant_id"`
	CustomerID      string          `bun:"customer_id,notnull" json:"customer_id"`
	DriverID        *string         `bun:"driver_id" json:"driver_id"`
	Status          OrderStatus     `bun:"status,notnull" json:"status"`
	Subtotal        decimal.Decimal `bun:"subtotal,type:decimal(12,2),notnull" json:"subtotal"`
	DeliveryFee     decimal.Decimal `bun:"delivery_fee,type:decimal(12,2),notnull" json:"delivery_fee"`
	Tax             decimal.Decimal `bun:"tax,type:decimal(12,2),notnull" json:"tax"`
	TotalAmount     decimal.Decimal `bun:"total_amount,type:decimal(12,2),notnull" json:"total_amount"`
	Notes           string          `bun:"notes,notnull,default:''" json:"notes"`
	DeliveryAddress string          `bun:"delivery_address,notnull,default:''" json:"delivery_address"`
	PaymentMethod   string          `bun:"payment_method,notnull,default:''" json:"payment_method"`
	CreatedDate     time.Time       `bun:"created_date,notnull" json:"created_date"`
	UpdatedDate     time.Time       `bun:"updated_date,notnull" json:"updated_date"`
	ReadyAt         *time.Time      `bun:"ready_at" json:"ready_at"`
	PickedUpAt      *time.Time      `bun:"picked_up_at" json:"picked_up_at"`
	ConfirmedAt     *time.Time      `bun:"confirmed_at" json:"confirmed_at"`
	DeliveredAt     *time.Time      `bun:"delivered_at" json:"delivered_at"`
	CancelledAt     *time.Time      `bun:"cancelled_at" json:"cancelled_at"`

	Items []*OrderItem `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
}

// AssignedTo reports whether the order is currently claimed by driverID.
func (o *Order) AssignedTo(driverID string) bool {
	return o.DriverID != nil && *o.DriverID == driverID
}

// Unassigned reports whether no driver holds the order.
func (o *Order) Unassigned() bool {
	return o.DriverID == nil || *o.DriverID == ""
}
