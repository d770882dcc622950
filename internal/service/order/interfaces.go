package order

import (
	"context"

	"github.com/NovaByteCorp/deliverypro/internal/entity"
	"github.com/NovaByteCorp/deliverypro/internal/lifecycle"
	repo "github.com/NovaByteCorp/deliverypro/internal/repository/order"
)

// OrderStore is the persistence the order workflow needs.
type OrderStore interface {
	GetByID(ctx context.Context, id string) (*entity.Order, error)
	GetFresh(ctx context.Context, id string) (*entity.Order, error)
	ListWhere(ctx context.Context, cond lifecycle.Condition) ([]*entity.Order, error)
	UpdateIf(ctx context.Context, id string, cond lifecycle.Condition, patch lifecycle.Patch) (repo.UpdateResult, error)
}

// RestaurantReader resolves restaurant ownership.
type RestaurantReader interface {
	GetRestaurant(ctx context.Context, id string) (*entity.Restaurant, error)
}

// DriverDirectory resolves registered delivery persons.
type DriverDirectory interface {
	GetDeliveryPerson(ctx context.Context, userID string) (*entity.DeliveryPerson, error)
}
