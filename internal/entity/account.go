package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// User is any account of the platform.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          string    `bun:"id,pk" json:"id"`
	Email       string    `bun:"email,notnull,unique" json:"email"`
	FullName    string    `bun:"full_name,notnull" json:"full_name"`
	UserType    Role      `bun:"user_type,notnull" json:"user_type"`
	CreatedDate time.Time `bun:"created_date,notnull" json:"created_date"`
}

// DeliveryPerson holds driver profile and vehicle metadata, 1:1 with a User of
// type entregador.
type DeliveryPerson struct {
	bun.BaseModel `bun:"table:delivery_persons,alias:dp"`

	UserID       string `bun:"user_id,pk" json:"user_id"`
	VehicleType  string `bun:"vehicle_type,notnull,default:''" json:"vehicle_type"`
	VehiclePlate string `bun:"vehicle_plate,notnull,default:''" json:"vehicle_plate"`
	IsAvailable  bool   `bun:"is_available,notnull" json:"is_available"`
}
