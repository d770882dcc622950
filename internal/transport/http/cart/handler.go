// Package cart serves the per-session cart, favorites and the change stream
// clients use to keep open tabs in sync.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/clientstate"
	"github.com/NovaByteCorp/deliverypro/internal/dto"
	"github.com/NovaByteCorp/deliverypro/internal/entity"
	"github.com/NovaByteCorp/deliverypro/internal/presentation/http/request"
	"github.com/NovaByteCorp/deliverypro/internal/presentation/http/response"
	"github.com/NovaByteCorp/deliverypro/internal/session"
	"github.com/NovaByteCorp/deliverypro/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/NovaByteCorp/deliverypro/transport/http/cart")

const (
	streamBuffer = 16
	retryMillis  = 3000
)

// Store is the session state used by the handlers.
type Store interface {
	Cart(ctx context.Context, sessionID string) ([]clientstate.CartItem, error)
	AddToCart(ctx context.Context, sessionID string, item clientstate.CartItem) ([]clientstate.CartItem, error)
	UpdateQuantity(ctx context.Context, sessionID, itemKey string, quantity int) ([]clientstate.CartItem, error)
	RemoveFromCart(ctx context.Context, sessionID, itemKey string) ([]clientstate.CartItem, error)
	ClearCart(ctx context.Context, sessionID string) error
	Favorites(ctx context.Context, sessionID string, kind clientstate.FavoriteKind) ([]string, error)
	ToggleFavorite(ctx context.Context, sessionID string, kind clientstate.FavoriteKind, id string) (bool, error)
	SetString(ctx context.Context, sessionID string, key clientstate.Key, value string) error
}

// Events is the source of change notifications.
type Events interface {
	Subscribe(buffer int) (<-chan clientstate.Event, func())
}

// Handler exposes client state over HTTP.
type Handler struct {
	store  Store
	events Events
	logger *zap.Logger
}

// NewHandler constructs a cart Handler.
func NewHandler(store *clientstate.Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, events: store.Events(), logger: logger}
}

// Register routes on e behind the authenticator.
func Register(e *echo.Echo, h *Handler, auth *session.Authenticator) {
	shoppers := session.RequireRoles(entity.RoleCustomer, entity.RoleAdmin)

	g := e.Group("/cart", auth.Middleware(), shoppers)
	g.GET("", h.get)
	g.DELETE("", h.clear)
	g.POST("/items", h.addItem)
	g.PATCH("/items/:itemId", h.updateItem)
	g.DELETE("/items/:itemId", h.removeItem)
	g.GET("/events", h.stream)

	f := e.Group("/favorites", auth.Middleware(), shoppers)
	f.GET("", h.favorites)
	f.POST("/toggle", h.toggleFavorite)

	e.PUT("/session/role", h.simulateRole, auth.Middleware())
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)
	actor, err := session.ActorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	ctx, span := httpTracer.Start(c.Request().Context(), "cart.get")
	defer span.End()

	items, err := h.store.Cart(ctx, actor.UserID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromCart(items)).Build()
}

func (h *Handler) addItem(c echo.Context) error {
	b := response.New(c)
	actor, err := session.ActorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.CartItemRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	ctx, span := httpTracer.Start(c.Request().Context(), "cart.addItem")
	defer span.End()

	items, err := h.store.AddToCart(ctx, actor.UserID, payload.ToCartItem())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromCart(items)).Build()
}

func (h *Handler) updateItem(c echo.Context) error {
	b := response.New(c)
	actor, err := session.ActorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.QuantityRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	ctx, span := httpTracer.Start(c.Request().Context(), "cart.updateItem")
	defer span.End()

	items, err := h.store.UpdateQuantity(ctx, actor.UserID, c.Param("itemId"), payload.Quantity)
	if err != nil {
		return b.WithError(mapCartError(err)).Build()
	}
	return b.WithData(dto.FromCart(items)).Build()
}

func (h *Handler) removeItem(c echo.Context) error {
	b := response.New(c)
	actor, err := session.ActorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	ctx, span := httpTracer.Start(c.Request().Context(), "cart.removeItem")
	defer span.End()

	items, err := h.store.RemoveFromCart(ctx, actor.UserID, c.Param("itemId"))
	if err != nil {
		return b.WithError(mapCartError(err)).Build()
	}
	return b.WithData(dto.FromCart(items)).Build()
}

func (h *Handler) clear(c echo.Context) error {
	b := response.New(c)
	actor, err := session.ActorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	if err := h.store.ClearCart(c.Request().Context(), actor.UserID); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromCart(nil)).Build()
}

func (h *Handler) favorites(c echo.Context) error {
	b := response.New(c)
	actor, err := session.ActorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	ctx := c.Request().Context()

	products, err := h.store.Favorites(ctx, actor.UserID, clientstate.FavoriteProducts)
	if err != nil {
		return b.WithError(err).Build()
	}
	restaurants, err := h.store.Favorites(ctx, actor.UserID, clientstate.FavoriteRestaurants)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FavoritesResponse{Products: products, Restaurants: restaurants}).Build()
}

func (h *Handler) toggleFavorite(c echo.Context) error {
	b := response.New(c)
	actor, err := session.ActorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.FavoriteToggleRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	favorite, err := h.store.ToggleFavorite(c.Request().Context(), actor.UserID, clientstate.FavoriteKind(payload.Kind), payload.ID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FavoriteToggleResponse{ID: payload.ID, Favorite: favorite}).Build()
}

// simulateRole lets an admin pick the role the API treats them as. Only the
// token role counts here so an admin acting as a driver can switch back.
func (h *Handler) simulateRole(c echo.Context) error {
	b := response.New(c)
	actor, err := session.ActorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	if session.RealRole(c) != entity.RoleAdmin {
		return b.WithError(errorbank.Forbidden("apenas administradores podem simular perfis")).Build()
	}
	var payload dto.SimulatedRoleRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	if err := h.store.SetString(c.Request().Context(), actor.UserID, clientstate.KeySimulatedRole, payload.Role); err != nil {
		return b.WithError(err).Build()
	}
	role := payload.Role
	if role == "" {
		role = string(entity.RoleAdmin)
	}
	return b.WithData(map[string]string{"role": role}).Build()
}

// stream pushes the caller's client state changes as server-sent events until
// the client disconnects.
func (h *Handler) stream(c echo.Context) error {
	actor, err := session.ActorFrom(c)
	if err != nil {
		return response.New(c).WithError(err).Build()
	}

	events, cancel := h.events.Subscribe(streamBuffer)
	defer cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintf(res, "retry: %d\n\n", retryMillis); err != nil {
		return nil
	}
	res.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.SessionID != actor.UserID {
				continue
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.log().Warn("encode client state event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func (h *Handler) log() *zap.Logger {
	if h.logger == nil {
		return zap.NewNop()
	}
	return h.logger
}

func mapCartError(err error) error {
	if errors.Is(err, clientstate.ErrItemNotFound) {
		return errorbank.NotFound("item não encontrado no carrinho", errorbank.WithCause(err))
	}
	return err
}
