package order

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NovaByteCorp/deliverypro/internal/dto"
	"github.com/NovaByteCorp/deliverypro/internal/entity"
	"github.com/NovaByteCorp/deliverypro/internal/lifecycle"
	"github.com/NovaByteCorp/deliverypro/internal/presentation/http/request"
	"github.com/NovaByteCorp/deliverypro/internal/presentation/http/response"
	service "github.com/NovaByteCorp/deliverypro/internal/service/order"
	"github.com/NovaByteCorp/deliverypro/internal/session"
	"github.com/NovaByteCorp/deliverypro/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/NovaByteCorp/deliverypro/transport/http/order")

// OrderService is the order workflow used by the handlers.
type OrderService interface {
	Get(ctx context.Context, actor lifecycle.Actor, id string) (*entity.Order, error)
	AllowedActions(ctx context.Context, actor lifecycle.Actor, order *entity.Order) []lifecycle.Action
	ListForCustomer(ctx context.Context, actor lifecycle.Actor, bucket lifecycle.Bucket) (*service.CustomerOrders, error)
	ListForRestaurant(ctx context.Context, actor lifecycle.Actor, restaurantID string, statuses []entity.OrderStatus) ([]*entity.Order, error)
	DriverBoard(ctx context.Context, actor lifecycle.Actor) (*service.Board, error)
	Transition(ctx context.Context, actor lifecycle.Actor, id string, action lifecycle.Action, reason string) (*entity.Order, error)
}

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc OrderService
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes on e behind the authenticator.
func Register(e *echo.Echo, h *Handler, auth *session.Authenticator) {
	g := e.Group("/orders", auth.Middleware())
	g.GET("", h.listMine, session.RequireRoles(entity.RoleCustomer, entity.RoleAdmin))
	g.GET("/:id", h.getByID)
	for action, segment := range dto.ActionRoutes() {
		g.POST("/:id/"+segment, h.transition(action))
	}

	e.GET("/driver/board", h.board, auth.Middleware(), session.RequireRoles(entity.RoleDriver))
	e.GET("/restaurants/:id/orders", h.restaurantOrders, auth.Middleware(),
		session.RequireRoles(entity.RoleRestaurant, entity.RoleAdmin))
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)
	actor, err := session.ActorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	id := c.Param("id")
	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, actor, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order).WithActions(h.svc.AllowedActions(ctx, actor, order))).Build()
}

func (h *Handler) listMine(c echo.Context) error {
	b := response.New(c)
	actor, err := session.ActorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	bucket := lifecycle.Bucket(strings.TrimSpace(c.QueryParam("bucket")))
	switch bucket {
	case "", lifecycle.BucketActive, lifecycle.BucketDelivered, lifecycle.BucketCancelled:
	default:
		return b.WithError(errorbank.BadRequest("filtro inválido", errorbank.WithDetail("bucket", bucket))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listMine")
	defer span.End()

	list, err := h.svc.ListForCustomer(ctx, actor, bucket)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.CustomerOrdersResponse{
		Orders:  dto.FromOrders(list.Orders),
		Summary: dto.FromSummary(list.Summary),
	}).Build()
}

func (h *Handler) restaurantOrders(c echo.Context) error {
	b := response.New(c)
	actor, err := session.ActorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var statuses []entity.OrderStatus
	for _, raw := range strings.Split(c.QueryParam("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			statuses = append(statuses, entity.OrderStatus(raw))
		}
	}

	restaurantID := c.Param("id")
	ctx, span := httpTracer.Start(c.Request().Context(), "orders.restaurantOrders", trace.WithAttributes(attribute.String("restaurant.id", restaurantID)))
	defer span.End()

	orders, err := h.svc.ListForRestaurant(ctx, actor, restaurantID, statuses)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrders(orders)).WithMeta("count", len(orders)).Build()
}

func (h *Handler) board(c echo.Context) error {
	b := response.New(c)
	actor, err := session.ActorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.board")
	defer span.End()

	board, err := h.svc.DriverBoard(ctx, actor)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.BoardResponse{
		Available:           dto.FromOrders(board.Available),
		PendingConfirmation: dto.FromOrders(board.PendingConfirmation),
		Active:              dto.FromOrders(board.Active),
	}).Build()
}

func (h *Handler) transition(action lifecycle.Action) echo.HandlerFunc {
	return func(c echo.Context) error {
		b := response.New(c)
		actor, err := session.ActorFrom(c)
		if err != nil {
			return b.WithError(err).Build()
		}

		var payload dto.RejectRequest
		if action == lifecycle.ActionReject && c.Request().ContentLength != 0 {
			if err := request.Bind(c, &payload); err != nil {
				return b.WithError(err).Build()
			}
		}

		id := c.Param("id")
		ctx, span := httpTracer.Start(c.Request().Context(), "orders.transition", trace.WithAttributes(
			attribute.String("order.id", id),
			attribute.String("order.action", string(action)),
		))
		defer span.End()

		order, err := h.svc.Transition(ctx, actor, id, action, payload.Reason)
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithStatus(http.StatusOK).
			WithData(dto.FromOrder(order).WithActions(h.svc.AllowedActions(ctx, actor, order))).
			Build()
	}
}
