package order

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/cache"
	"github.com/NovaByteCorp/deliverypro/internal/config"
	"github.com/NovaByteCorp/deliverypro/internal/entity"
	"github.com/NovaByteCorp/deliverypro/internal/lifecycle"
	"github.com/NovaByteCorp/deliverypro/internal/observability"
	"github.com/NovaByteCorp/deliverypro/internal/repository/account"
	"github.com/NovaByteCorp/deliverypro/internal/repository/catalog"
	repo "github.com/NovaByteCorp/deliverypro/internal/repository/order"
	"github.com/NovaByteCorp/deliverypro/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/NovaByteCorp/deliverypro/service/order")

var (
	// ErrOrderUnavailable means another driver claimed the order first.
	ErrOrderUnavailable = errors.New("order no longer available")
	// ErrConcurrentUpdate means the row changed between read and write.
	ErrConcurrentUpdate = errors.New("order changed concurrently")
)

// Service runs the order workflow: reads, role views and guarded transitions.
type Service struct {
	orders      OrderStore
	restaurants RestaurantReader
	drivers     DriverDirectory
	cache       cache.Store
	cacheTTL    time.Duration
	publisher   *Publisher
	metrics     *observability.OrderMetrics
	policy      lifecycle.Policy
	logger      *zap.Logger
	now         func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders      *repo.Repository
	Restaurants *catalog.Repository
	Drivers     *account.Repository
	Cache       cache.Store
	Config      config.Config
	Logger      *zap.Logger
	Publisher   *Publisher
	Metrics     *observability.OrderMetrics `optional:"true"`
}

// NewService wires a Service from the Fx graph.
func NewService(p Params) *Service {
	store := p.Cache
	if p.Config.Cache.Driver == "noop" {
		store = nil
	}
	return New(Deps{
		Orders:      p.Orders,
		Restaurants: p.Restaurants,
		Drivers:     p.Drivers,
		Cache:       store,
		CacheTTL:    p.Config.Cache.DefaultTTL,
		Publisher:   p.Publisher,
		Metrics:     p.Metrics,
		Policy:      lifecycle.Policy{CancellationTimeLimit: p.Config.Orders.CancellationTimeLimit},
		Logger:      p.Logger,
	})
}

// Deps lists the collaborators of Service.
type Deps struct {
	Orders      OrderStore
	Restaurants RestaurantReader
	Drivers     DriverDirectory
	Cache       cache.Store
	CacheTTL    time.Duration
	Publisher   *Publisher
	Metrics     *observability.OrderMetrics
	Policy      lifecycle.Policy
	Logger      *zap.Logger
	Now         func() time.Time
}

// New builds a Service from explicit collaborators.
func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := d.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		orders:      d.Orders,
		restaurants: d.Restaurants,
		drivers:     d.Drivers,
		cache:       d.Cache,
		cacheTTL:    d.CacheTTL,
		publisher:   d.Publisher,
		metrics:     d.Metrics,
		policy:      d.Policy,
		logger:      logger,
		now:         now,
	}
}

// Policy returns the lifecycle guards in force.
func (s *Service) Policy() lifecycle.Policy { return s.policy }

// Get retrieves an order with its items, consulting the cache first, and
// checks that actor may see it.
func (s *Service) Get(ctx context.Context, actor lifecycle.Actor, id string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := s.getFromCache(ctx, id)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("orders cache read failed", zap.String("id", id), zap.Error(err))
		}
		// A lagging replica must not seed the cache with a pre-transition row.
		load := s.orders.GetByID
		if s.cache != nil {
			load = s.orders.GetFresh
		}
		order, err = load(ctx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, errorbank.NotFound("pedido não encontrado")
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
			return nil, errorbank.Internal("falha ao carregar pedido", errorbank.WithCause(err))
		}
		if s.cache != nil {
			if err := cache.SetJSON(ctx, s.cache, cacheKey(id), order, s.cacheTTL); err != nil {
				s.logger.Warn("orders cache write failed", zap.String("id", id), zap.Error(err))
			}
		}
	}

	if err := s.authorizeView(ctx, actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

// AllowedActions lists what actor could do next with order.
func (s *Service) AllowedActions(ctx context.Context, actor lifecycle.Actor, order *entity.Order) []lifecycle.Action {
	ownerID := ""
	if actor.Role == entity.RoleRestaurant {
		ownerID, _ = s.restaurantOwner(ctx, order.RestaurantID)
	}
	return lifecycle.Allowed(order, actor, ownerID, s.policy, s.now())
}

// CustomerOrders is the customer order history with per-bucket counts.
type CustomerOrders struct {
	Orders  []*entity.Order
	Summary lifecycle.Summary
}

// ListForCustomer returns the orders placed by actor.
func (s *Service) ListForCustomer(ctx context.Context, actor lifecycle.Actor, bucket lifecycle.Bucket) (*CustomerOrders, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListForCustomer")
	defer span.End()

	orders, err := s.orders.ListWhere(ctx, lifecycle.Condition{CustomerID: actor.UserID})
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("falha ao listar pedidos", errorbank.WithCause(err))
	}

	out := &CustomerOrders{Summary: lifecycle.Summarize(orders), Orders: orders}
	if bucket != "" {
		filtered := make([]*entity.Order, 0, len(orders))
		for _, o := range orders {
			if lifecycle.BucketOf(o.Status) == bucket {
				filtered = append(filtered, o)
			}
		}
		out.Orders = filtered
	}
	return out, nil
}

// ListForRestaurant returns the orders of a restaurant owned by actor.
func (s *Service) ListForRestaurant(ctx context.Context, actor lifecycle.Actor, restaurantID string, statuses []entity.OrderStatus) ([]*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListForRestaurant", trace.WithAttributes(attribute.String("restaurant.id", restaurantID)))
	defer span.End()

	if actor.Role != entity.RoleAdmin {
		ownerID, err := s.restaurantOwner(ctx, restaurantID)
		if err != nil {
			return nil, err
		}
		if ownerID != actor.UserID {
			return nil, errorbank.Forbidden("restaurante pertence a outro usuário")
		}
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, errorbank.BadRequest("status desconhecido", errorbank.WithDetail("status", st))
		}
	}

	orders, err := s.orders.ListWhere(ctx, lifecycle.Condition{RestaurantID: restaurantID, Statuses: statuses})
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("falha ao listar pedidos", errorbank.WithCause(err))
	}
	return orders, nil
}

// Board is the driver dashboard: three independently queried lists.
type Board struct {
	Available           []*entity.Order `json:"available"`
	PendingConfirmation []*entity.Order `json:"pending_confirmation"`
	Active              []*entity.Order `json:"active"`
}

// DriverBoard runs the three driver queries. Each list is a fresh read.
func (s *Service) DriverBoard(ctx context.Context, actor lifecycle.Actor) (*Board, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.DriverBoard", trace.WithAttributes(attribute.String("driver.id", actor.UserID)))
	defer span.End()

	if actor.Role != entity.RoleDriver {
		return nil, errorbank.Forbidden("apenas entregadores possuem painel")
	}

	board := &Board{}
	queries := []struct {
		cond lifecycle.Condition
		dst  *[]*entity.Order
	}{
		{lifecycle.AvailableForDrivers(), &board.Available},
		{lifecycle.PendingConfirmation(actor.UserID), &board.PendingConfirmation},
		{lifecycle.ActiveDeliveries(actor.UserID), &board.Active},
	}
	for _, q := range queries {
		orders, err := s.orders.ListWhere(ctx, q.cond)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
			return nil, errorbank.Internal("falha ao carregar painel", errorbank.WithCause(err))
		}
		*q.dst = orders
	}
	return board, nil
}

func (s *Service) authorizeView(ctx context.Context, actor lifecycle.Actor, order *entity.Order) error {
	switch actor.Role {
	case entity.RoleAdmin:
		return nil
	case entity.RoleCustomer:
		if order.CustomerID == actor.UserID {
			return nil
		}
	case entity.RoleDriver:
		if order.AssignedTo(actor.UserID) || lifecycle.AvailableForDrivers().Matches(order) {
			return nil
		}
	case entity.RoleRestaurant:
		ownerID, err := s.restaurantOwner(ctx, order.RestaurantID)
		if err != nil {
			return err
		}
		if ownerID == actor.UserID {
			return nil
		}
	}
	return errorbank.NotFound("pedido não encontrado")
}

func (s *Service) restaurantOwner(ctx context.Context, restaurantID string) (string, error) {
	restaurant, err := s.restaurants.GetRestaurant(ctx, restaurantID)
	if errors.Is(err, catalog.ErrRestaurantNotFound) {
		return "", errorbank.NotFound("restaurante não encontrado")
	}
	if err != nil {
		return "", errorbank.Internal("falha ao carregar restaurante", errorbank.WithCause(err))
	}
	return restaurant.OwnerID, nil
}

func cacheKey(id string) string {
	return cache.Key("orders", id)
}

func (s *Service) getFromCache(ctx context.Context, id string) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	var order entity.Order
	if err := cache.GetJSON(ctx, s.cache, cacheKey(id), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Invalidate drops the cached copy of an order.
func (s *Service) Invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(id)); err != nil {
		s.logger.Warn("orders cache delete failed", zap.String("id", id), zap.Error(err))
	}
}
