package checkout

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NovaByteCorp/deliverypro/internal/clientstate"
	"github.com/NovaByteCorp/deliverypro/internal/dto"
	"github.com/NovaByteCorp/deliverypro/internal/entity"
	"github.com/NovaByteCorp/deliverypro/internal/lifecycle"
	"github.com/NovaByteCorp/deliverypro/internal/presentation/http/request"
	"github.com/NovaByteCorp/deliverypro/internal/presentation/http/response"
	service "github.com/NovaByteCorp/deliverypro/internal/service/checkout"
	"github.com/NovaByteCorp/deliverypro/internal/session"
)

var httpTracer = otel.Tracer("github.com/NovaByteCorp/deliverypro/transport/http/checkout")

// CheckoutService places and prices orders.
type CheckoutService interface {
	Checkout(ctx context.Context, actor lifecycle.Actor, req service.Request) (*entity.Order, error)
	Quote(ctx context.Context, lines []clientstate.CartItem) (service.Totals, error)
}

// CartReader reads the session cart for quotes.
type CartReader interface {
	Cart(ctx context.Context, sessionID string) ([]clientstate.CartItem, error)
}

// Handler exposes checkout over HTTP.
type Handler struct {
	svc   CheckoutService
	carts CartReader
}

// NewHandler constructs a checkout Handler.
func NewHandler(svc *service.Service, store *clientstate.Store) *Handler {
	return &Handler{svc: svc, carts: store}
}

// Register routes on e behind the authenticator.
func Register(e *echo.Echo, h *Handler, auth *session.Authenticator) {
	g := e.Group("/checkout", auth.Middleware(), session.RequireRoles(entity.RoleCustomer, entity.RoleAdmin))
	g.POST("", h.checkout)
	g.POST("/quote", h.quote)
}

func (h *Handler) checkout(c echo.Context) error {
	b := response.New(c)
	actor, err := session.ActorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.CheckoutRequest
	if c.Request().ContentLength != 0 {
		if err := request.Bind(c, &payload); err != nil {
			return b.WithError(err).Build()
		}
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "checkout.checkout", trace.WithAttributes(attribute.Int("cart.lines", len(payload.Items))))
	defer span.End()

	order, err := h.svc.Checkout(ctx, actor, service.Request{
		SessionID:       actor.UserID,
		Lines:           dto.ToCartItems(payload.Items),
		DeliveryAddress: payload.DeliveryAddress,
		PaymentMethod:   payload.PaymentMethod,
		Notes:           payload.Notes,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) quote(c echo.Context) error {
	b := response.New(c)
	actor, err := session.ActorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.QuoteRequest
	if c.Request().ContentLength != 0 {
		if err := request.Bind(c, &payload); err != nil {
			return b.WithError(err).Build()
		}
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "checkout.quote")
	defer span.End()

	lines := dto.ToCartItems(payload.Items)
	if len(lines) == 0 {
		if lines, err = h.carts.Cart(ctx, actor.UserID); err != nil {
			return b.WithError(err).Build()
		}
	}

	totals, err := h.svc.Quote(ctx, lines)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.QuoteResponse{
		Subtotal:    totals.Subtotal,
		DeliveryFee: totals.DeliveryFee,
		Tax:         totals.Tax,
		Total:       totals.Total,
	}).Build()
}
