// Package seeder loads a small demo dataset: one account per role, two
// restaurants with menus and a few orders spread over the workflow.
package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/database"
	"github.com/NovaByteCorp/deliverypro/internal/entity"
)

// Fixed ids of the demo accounts, handy for issuing tokens.
const (
	CustomerID = "user-cliente"
	OwnerID    = "user-restaurante"
	DriverID   = "user-entregador"
	AdminID    = "user-admin"
)

// Module provides the Seeder.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{db: conns.Writer, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Run seeds everything. Existing rows are left untouched so it can be
// repeated.
func (s *Seeder) Run(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"accounts", s.Accounts},
		{"catalog", s.Catalog},
		{"orders", s.Orders},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("seed %s: %w", step.name, err)
		}
	}
	return nil
}

// Accounts seeds one user per role and the driver profile.
func (s *Seeder) Accounts(ctx context.Context) error {
	now := s.now()
	users := []*entity.User{
		{ID: CustomerID, Email: "cliente@deliverypro.dev", FullName: "Carla Cliente", UserType: entity.RoleCustomer, CreatedDate: now},
		{ID: OwnerID, Email: "restaurante@deliverypro.dev", FullName: "Rui Restaurante", UserType: entity.RoleRestaurant, CreatedDate: now},
		{ID: DriverID, Email: "entregador@deliverypro.dev", FullName: "Edu Entregador", UserType: entity.RoleDriver, CreatedDate: now},
		{ID: AdminID, Email: "admin@deliverypro.dev", FullName: "Ana Admin", UserType: entity.RoleAdmin, CreatedDate: now},
	}
	if err := s.insert(ctx, &users); err != nil {
		return err
	}
	drivers := []*entity.DeliveryPerson{
		{UserID: DriverID, VehicleType: "moto", VehiclePlate: "ABC1D23", IsAvailable: true},
	}
	if err := s.insert(ctx, &drivers); err != nil {
		return err
	}
	s.logger.Info("seeded accounts", zap.Int("users", len(users)), zap.Int("drivers", len(drivers)))
	return nil
}

// Catalog seeds restaurants and their products.
func (s *Seeder) Catalog(ctx context.Context) error {
	now := s.now()
	restaurants := []*entity.Restaurant{
		{ID: "rest-cantina", Name: "Cantina da Nonna", OwnerID: OwnerID, IsActive: true, CreatedDate: now, UpdatedDate: now},
		{ID: "rest-sushi", Name: "Sushi Bar Hoshi", OwnerID: OwnerID, IsActive: false, CreatedDate: now, UpdatedDate: now},
	}
	if err := s.insert(ctx, &restaurants); err != nil {
		return err
	}

	products := []*entity.Product{
		{ID: "prod-lasanha", RestaurantID: "rest-cantina", Name: "Lasanha à Bolonhesa", Price: decimal.RequireFromString("42.90"), Ingredients: []string{"massa", "molho bolonhesa", "queijo"}, IsAvailable: true},
		{ID: "prod-nhoque", RestaurantID: "rest-cantina", Name: "Nhoque ao Sugo", Price: decimal.RequireFromString("34.90"), Ingredients: []string{"batata", "molho de tomate", "manjericão"}, IsAvailable: true},
		{ID: "prod-tiramisu", RestaurantID: "rest-cantina", Name: "Tiramisù", Price: decimal.RequireFromString("19.50"), Ingredients: []string{"café", "mascarpone", "cacau"}, IsAvailable: false},
		{ID: "prod-combo", RestaurantID: "rest-sushi", Name: "Combo 20 peças", Price: decimal.RequireFromString("79.00"), Ingredients: []string{"salmão", "atum", "arroz"}, IsAvailable: true},
	}
	if err := s.insert(ctx, &products); err != nil {
		return err
	}
	s.logger.Info("seeded catalog", zap.Int("restaurants", len(restaurants)), zap.Int("products", len(products)))
	return nil
}

// Orders seeds a pending order, one ready for pickup and a delivered one.
func (s *Seeder) Orders(ctx context.Context) error {
	now := s.now()
	earlier := now.Add(-2 * time.Hour)
	driver := DriverID

	orders := []*entity.Order{
		seedOrder("seed-order-1", "ORD-SEED-000001", entity.StatusPending, now),
		seedOrder("seed-order-2", "ORD-SEED-000002", entity.StatusReady, now),
		seedOrder("seed-order-3", "ORD-SEED-000003", entity.StatusDelivered, earlier),
	}
	orders[1].ConfirmedAt = &now
	orders[1].ReadyAt = &now
	orders[2].DriverID = &driver
	orders[2].ConfirmedAt = &earlier
	orders[2].ReadyAt = &earlier
	orders[2].PickedUpAt = &earlier
	orders[2].DeliveredAt = &now

	var items []*entity.OrderItem
	for _, o := range orders {
		items = append(items, &entity.OrderItem{
			ID:          o.ID + "-item-1",
			OrderID:     o.ID,
			ProductID:   "prod-lasanha",
			ProductName: "Lasanha à Bolonhesa",
			UnitPrice:   o.Subtotal,
			Quantity:    1,
			LineTotal:   o.Subtotal,
		})
	}

	if err := s.insert(ctx, &orders); err != nil {
		return err
	}
	if err := s.insert(ctx, &items); err != nil {
		return err
	}
	s.logger.Info("seeded orders", zap.Int("count", len(orders)))
	return nil
}

func seedOrder(id, number string, status entity.OrderStatus, at time.Time) *entity.Order {
	subtotal := decimal.RequireFromString("42.90")
	fee := decimal.RequireFromString("5.00")
	tax := subtotal.Mul(decimal.RequireFromString("0.10")).Round(2)
	return &entity.Order{
		ID:              id,
		OrderNumber:     number,
		RestaurantID:    "rest-cantina",
		CustomerID:      CustomerID,
		Status:          status,
		Subtotal:        subtotal,
		DeliveryFee:     fee,
		Tax:             tax,
		TotalAmount:     subtotal.Add(fee).Add(tax),
		DeliveryAddress: "Rua das Flores, 123",
		PaymentMethod:   "pix",
		CreatedDate:     at,
		UpdatedDate:     at,
	}
}

// insert writes a slice of models, skipping rows whose key already exists.
func (s *Seeder) insert(ctx context.Context, models any) error {
	_, err := s.db.NewInsert().Model(models).Ignore().Exec(ctx)
	return err
}
