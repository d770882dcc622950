package entity

import (
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// OrderItem is one product line of an order. Rows are written once with their
// parent order and never updated.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID                 string          `bun:"id,pk" json:"id"`
	OrderID            string          `bun:"order_id,notnull" json:"order_id"`
	ProductID          string          `bun:"product_id,notnull" json:"product_id"`
	ProductName        string          `bun:"product_name,notnull" json:"product_name"`
	UnitPrice          decimal.Decimal `bun:"unit_price,type:decimal(12,2),notnull" json:"unit_price"`
	Quantity           int             `bun:"quantity,notnull" json:"quantity"`
	RemovedIngredients []string        `bun:"removed_ingredients,type:text" json:"removed_ingredients"`
	LineTotal          decimal.Decimal `bun:"line_total,type:decimal(12,2),notnull" json:"line_total"`
}
