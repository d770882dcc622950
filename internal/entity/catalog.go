package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Restaurant is a merchant. IsActive gates customer-facing visibility only.
type Restaurant struct {
	bun.BaseModel `bun:"table:restaurants,alias:r"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	OwnerID     string    `bun:"owner_id" json:"owner_id"`
	IsActive    bool      `bun:"is_active,notnull" json:"is_active"`
	ImageURL    string    `bun:"image_url,notnull,default:''" json:"image_url"`
	CreatedDate time.Time `bun:"created_date,notnull" json:"created_date"`
	UpdatedDate time.Time `bun:"updated_date,notnull" json:"updated_date"`
}

// Product is a menu entry of a restaurant.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID           string          `bun:"id,pk" json:"id"`
	RestaurantID string          `bun:"restaurant_id,notnull" json:"restaurant_id"`
	Name         string          `bun:"name,notnull" json:"name"`
	Price        decimal.Decimal `bun:"price,type:decimal(12,2),notnull" json:"price"`
	Ingredients  []string        `bun:"ingredients,type:text" json:"ingredients"`
	IsAvailable  bool            `bun:"is_available,notnull" json:"is_available"`
	ImageURL     string          `bun:"image_url,notnull,default:''" json:"image_url"`
}
