// Package checkout turns a cart into a persisted order.
package checkout

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/clientstate"
	"github.com/NovaByteCorp/deliverypro/internal/config"
	"github.com/NovaByteCorp/deliverypro/internal/entity"
	"github.com/NovaByteCorp/deliverypro/internal/lifecycle"
	"github.com/NovaByteCorp/deliverypro/internal/observability"
	"github.com/NovaByteCorp/deliverypro/internal/repository/catalog"
	repo "github.com/NovaByteCorp/deliverypro/internal/repository/order"
	ordersvc "github.com/NovaByteCorp/deliverypro/internal/service/order"
	"github.com/NovaByteCorp/deliverypro/internal/unitofwork"
	"github.com/NovaByteCorp/deliverypro/pkg/errorbank"
)

var tracer = otel.Tracer("github.com/NovaByteCorp/deliverypro/service/checkout")

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrMultipleRestaurant = errors.New("cart holds products of more than one restaurant")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrRestaurantInactive = errors.New("restaurant is not active")
)

// Module provides the checkout service to Fx.
var Module = fx.Provide(NewService)

// OrderWriter persists a new order and can take it back.
type OrderWriter interface {
	Create(ctx context.Context, order *entity.Order) error
	CreateItems(ctx context.Context, items []*entity.OrderItem) error
	Delete(ctx context.Context, id string) error
}

// Catalog resolves product snapshots and their restaurant.
type Catalog interface {
	GetProducts(ctx context.Context, ids []string) (map[string]*entity.Product, error)
	GetRestaurant(ctx context.Context, id string) (*entity.Restaurant, error)
}

// Session is the client state a checkout reads and resets.
type Session interface {
	Cart(ctx context.Context, sessionID string) ([]clientstate.CartItem, error)
	ClearCart(ctx context.Context, sessionID string) error
	GetString(ctx context.Context, sessionID string, key clientstate.Key) (string, error)
	SetString(ctx context.Context, sessionID string, key clientstate.Key, value string) error
}

// Pricing holds the money knobs applied to every order.
type Pricing struct {
	DeliveryFee decimal.Decimal
	TaxRate     decimal.Decimal
}

// Totals is the money breakdown of an order.
type Totals struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
}

// Compute prices lines. Tax is rounded half away from zero to cents.
func (p Pricing) Compute(lines []*entity.OrderItem) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal)
	}
	tax := subtotal.Mul(p.TaxRate).Round(2)
	fee := p.DeliveryFee.Round(2)
	return Totals{
		Subtotal:    subtotal.Round(2),
		DeliveryFee: fee,
		Tax:         tax,
		Total:       subtotal.Add(fee).Add(tax).Round(2),
	}
}

// Request is one checkout attempt.
type Request struct {
	SessionID string
	// Lines overrides the session cart when non-empty.
	Lines []clientstate.CartItem
	// DeliveryAddress and PaymentMethod fall back to the values remembered
	// for the session.
	DeliveryAddress string
	PaymentMethod   string
	Notes           string
}

// Service places orders.
type Service struct {
	orders        OrderWriter
	catalog       Catalog
	session       Session
	publisher     *ordersvc.Publisher
	metrics       *observability.OrderMetrics
	pricing       Pricing
	requireActive bool
	logger        *zap.Logger
	now           func() time.Time
	newID         func() string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders    *repo.Repository
	Catalog   *catalog.Repository
	Session   *clientstate.Store
	Publisher *ordersvc.Publisher
	Config    config.Config
	Logger    *zap.Logger
	Metrics   *observability.OrderMetrics `optional:"true"`
}

// NewService wires a Service from the Fx graph.
func NewService(p Params) *Service {
	return New(Deps{
		Orders:    p.Orders,
		Catalog:   p.Catalog,
		Session:   p.Session,
		Publisher: p.Publisher,
		Metrics:   p.Metrics,
		Pricing: Pricing{
			DeliveryFee: p.Config.Orders.DeliveryFee,
			TaxRate:     p.Config.Orders.TaxRate,
		},
		RequireActiveRestaurant: p.Config.Orders.RequireActiveRestaurant,
		Logger:                  p.Logger,
	})
}

// Deps lists the collaborators of Service.
type Deps struct {
	Orders                  OrderWriter
	Catalog                 Catalog
	Session                 Session
	Publisher               *ordersvc.Publisher
	Metrics                 *observability.OrderMetrics
	Pricing                 Pricing
	RequireActiveRestaurant bool
	Logger                  *zap.Logger
	Now                     func() time.Time
	NewID                   func() string
}

// New builds a Service from explicit collaborators.
func New(d Deps) *Service {
	s := &Service{
		orders:        d.Orders,
		catalog:       d.Catalog,
		session:       d.Session,
		publisher:     d.Publisher,
		metrics:       d.Metrics,
		pricing:       d.Pricing,
		requireActive: d.RequireActiveRestaurant,
		logger:        d.Logger,
		now:           d.Now,
		newID:         d.NewID,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	return s
}

// Checkout prices the cart, writes the order and its items as one unit and
// resets the cart. On a failed item insert the order row is removed again.
func (s *Service) Checkout(ctx context.Context, actor lifecycle.Actor, req Request) (*entity.Order, error) {
	ctx, span := tracer.Start(ctx, "CheckoutService.Checkout", trace.WithAttributes(attribute.String("customer.id", actor.UserID)))
	defer span.End()

	if actor.Role != entity.RoleCustomer && actor.Role != entity.RoleAdmin {
		return nil, errorbank.Forbidden("apenas clientes podem finalizar pedidos")
	}

	lines := req.Lines
	if len(lines) == 0 && req.SessionID != "" {
		cart, err := s.session.Cart(ctx, req.SessionID)
		if err != nil {
			return nil, errorbank.Internal("falha ao carregar carrinho", errorbank.WithCause(err))
		}
		lines = cart
	}
	if len(lines) == 0 {
		s.metrics.Checkout(ctx, "empty")
		return nil, errorbank.BadRequest("carrinho vazio", errorbank.WithCause(ErrEmptyCart))
	}

	address, payment, err := s.preferences(ctx, req)
	if err != nil {
		return nil, err
	}

	restaurant, items, err := s.resolve(ctx, lines)
	if err != nil {
		s.metrics.Checkout(ctx, "rejected")
		return nil, err
	}

	now := s.now()
	order := &entity.Order{
		ID:              s.newID(),
		RestaurantID:    restaurant.ID,
		CustomerID:      actor.UserID,
		Status:          entity.StatusPending,
		Notes:           strings.TrimSpace(req.Notes),
		DeliveryAddress: address,
		PaymentMethod:   payment,
		CreatedDate:     now,
		UpdatedDate:     now,
	}
	order.OrderNumber = orderNumber(now, order.ID)
	for _, item := range items {
		item.ID = s.newID()
		item.OrderID = order.ID
	}
	totals := s.pricing.Compute(items)
	order.Subtotal = totals.Subtotal
	order.DeliveryFee = totals.DeliveryFee
	order.Tax = totals.Tax
	order.TotalAmount = totals.Total

	inserted := false
	unit := unitofwork.New(s.logger).
		Add(unitofwork.Step{
			Name: "insert order",
			Do: func(ctx context.Context) error {
				if err := s.orders.Create(ctx, order); err != nil {
					return err
				}
				inserted = true
				return nil
			},
			Undo: func(ctx context.Context) error { return s.orders.Delete(ctx, order.ID) },
		}).
		Add(unitofwork.Step{
			Name: "insert items",
			Do:   func(ctx context.Context) error { return s.orders.CreateItems(ctx, items) },
		})
	if err := unit.Run(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		var compErr *unitofwork.CompensationError
		compensated := !errors.As(err, &compErr)
		if inserted {
			s.metrics.Compensation(ctx, compensated)
		}
		s.metrics.Checkout(ctx, "failed")
		s.logger.Error("checkout failed",
			zap.String("order_id", order.ID),
			zap.Bool("compensated", compensated),
			zap.Error(err),
		)
		return nil, errorbank.Internal("falha ao registrar pedido", errorbank.WithCause(err))
	}
	order.Items = items

	s.afterCheckout(ctx, req.SessionID, order, address, payment)
	s.publisher.Publish(ctx, ordersvc.NewEvent(ordersvc.EventCreated, order, "", ""))
	s.metrics.Checkout(ctx, "ok")
	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("restaurant_id", order.RestaurantID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

// Quote prices lines without writing anything.
func (s *Service) Quote(ctx context.Context, lines []clientstate.CartItem) (Totals, error) {
	if len(lines) == 0 {
		return s.pricing.Compute(nil), nil
	}
	_, items, err := s.resolve(ctx, lines)
	if err != nil {
		return Totals{}, err
	}
	return s.pricing.Compute(items), nil
}

func (s *Service) preferences(ctx context.Context, req Request) (string, string, error) {
	address := strings.TrimSpace(req.DeliveryAddress)
	payment := strings.TrimSpace(req.PaymentMethod)
	if req.SessionID == "" {
		return address, payment, nil
	}
	var err error
	if address == "" {
		if address, err = s.session.GetString(ctx, req.SessionID, clientstate.KeyDeliveryAddress); err != nil {
			return "", "", errorbank.Internal("falha ao carregar endereço", errorbank.WithCause(err))
		}
	}
	if payment == "" {
		if payment, err = s.session.GetString(ctx, req.SessionID, clientstate.KeyPaymentMethod); err != nil {
			return "", "", errorbank.Internal("falha ao carregar pagamento", errorbank.WithCause(err))
		}
	}
	return address, payment, nil
}

// resolve snapshots product names and prices from the catalog and checks
// that every line belongs to one restaurant.
func (s *Service) resolve(ctx context.Context, lines []clientstate.CartItem) (*entity.Restaurant, []*entity.OrderItem, error) {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ID]; ok {
			continue
		}
		seen[l.ID] = struct{}{}
		ids = append(ids, l.ID)
	}

	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, nil, errorbank.Internal("falha ao carregar produtos", errorbank.WithCause(err))
	}

	restaurantID := ""
	items := make([]*entity.OrderItem, 0, len(lines))
	for _, l := range lines {
		p, ok := products[l.ID]
		if !ok || !p.IsAvailable {
			return nil, nil, errorbank.Unprocessable("produto indisponível",
				errorbank.WithCause(ErrProductUnavailable), errorbank.WithDetail("product_id", l.ID))
		}
		if restaurantID == "" {
			restaurantID = p.RestaurantID
		} else if restaurantID != p.RestaurantID {
			return nil, nil, errorbank.BadRequest("o carrinho deve conter produtos de um único restaurante",
				errorbank.WithCause(ErrMultipleRestaurant))
		}

		qty := l.Quantity
		if qty < 1 {
			qty = 1
		}
		price := p.Price.Round(2)
		removed := append([]string(nil), l.RemovedIngredients...)
		sort.Strings(removed)
		items = append(items, &entity.OrderItem{
			ProductID:          p.ID,
			ProductName:        p.Name,
			UnitPrice:          price,
			Quantity:           qty,
			RemovedIngredients: removed,
			LineTotal:          price.Mul(decimal.NewFromInt(int64(qty))),
		})
	}

	restaurant, err := s.catalog.GetRestaurant(ctx, restaurantID)
	if errors.Is(err, catalog.ErrRestaurantNotFound) {
		return nil, nil, errorbank.Unprocessable("restaurante não encontrado", errorbank.WithDetail("restaurant_id", restaurantID))
	}
	if err != nil {
		return nil, nil, errorbank.Internal("falha ao carregar restaurante", errorbank.WithCause(err))
	}
	if !restaurant.IsActive {
		if s.requireActive {
			return nil, nil, errorbank.Unprocessable("restaurante fechado", errorbank.WithCause(ErrRestaurantInactive))
		}
		s.logger.Warn("order placed for inactive restaurant", zap.String("restaurant_id", restaurant.ID))
	}
	return restaurant, items, nil
}

func (s *Service) afterCheckout(ctx context.Context, sessionID string, order *entity.Order, address, payment string) {
	if sessionID == "" {
		return
	}
	if err := s.session.ClearCart(ctx, sessionID); err != nil {
		s.logger.Warn("clear cart after checkout", zap.String("order_id", order.ID), zap.Error(err))
	}
	values := map[clientstate.Key]string{
		clientstate.KeyLastOrderID:     order.ID,
		clientstate.KeyDeliveryAddress: address,
		clientstate.KeyPaymentMethod:   payment,
	}
	for key, value := range values {
		if value == "" {
			continue
		}
		if err := s.session.SetString(ctx, sessionID, key, value); err != nil {
			s.logger.Warn("store session value", zap.String("key", string(key)), zap.Error(err))
		}
	}
}

// orderNumber renders ORD-YYYYMMDD-XXXXXX from the creation date and the
// first six hex digits of the id.
func orderNumber(at time.Time, id string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return "ORD-" + at.Format("20060102") + "-" + suffix
}
