package restaurant

import (
	"context"
	"errors"
	"io"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/config"
	"github.com/NovaByteCorp/deliverypro/internal/dto"
	"github.com/NovaByteCorp/deliverypro/internal/entity"
	"github.com/NovaByteCorp/deliverypro/internal/presentation/http/request"
	"github.com/NovaByteCorp/deliverypro/internal/presentation/http/response"
	catalog "github.com/NovaByteCorp/deliverypro/internal/repository/catalog"
	"github.com/NovaByteCorp/deliverypro/internal/session"
	"github.com/NovaByteCorp/deliverypro/internal/upload"
	"github.com/NovaByteCorp/deliverypro/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/NovaByteCorp/deliverypro/transport/http/restaurant")

const imageField = "image"

// Catalog reads and updates restaurants.
type Catalog interface {
	GetRestaurant(ctx context.Context, id string) (*entity.Restaurant, error)
	ListRestaurants(ctx context.Context, activeOnly bool) ([]*entity.Restaurant, error)
	ListProducts(ctx context.Context, restaurantID string) ([]*entity.Product, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetImage(ctx context.Context, id, url string) error
}

// Handler exposes the restaurant catalog over HTTP.
type Handler struct {
	catalog  Catalog
	uploader upload.Uploader
	maxBytes int64
	logger   *zap.Logger
}

// NewHandler constructs a restaurant Handler.
func NewHandler(repo *catalog.Repository, uploader upload.Uploader, cfg config.Config, logger *zap.Logger) *Handler {
	return &Handler{catalog: repo, uploader: uploader, maxBytes: int64(cfg.Upload.MaxBytes), logger: logger}
}

// Register routes on e. Browsing is public; changes need a token.
func Register(e *echo.Echo, h *Handler, auth *session.Authenticator) {
	e.GET("/restaurants", h.list)
	e.GET("/restaurants/:id/products", h.products)
	e.PATCH("/restaurants/:id/active", h.setActive, auth.Middleware(), session.RequireRoles(entity.RoleAdmin))
	e.POST("/restaurants/:id/image", h.uploadImage, auth.Middleware(), session.RequireRoles(entity.RoleRestaurant, entity.RoleAdmin))
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	ctx, span := httpTracer.Start(c.Request().Context(), "restaurants.list")
	defer span.End()

	restaurants, err := h.catalog.ListRestaurants(ctx, true)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromRestaurants(restaurants)).WithMeta("count", len(restaurants)).Build()
}

func (h *Handler) products(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")
	ctx, span := httpTracer.Start(c.Request().Context(), "restaurants.products", trace.WithAttributes(attribute.String("restaurant.id", id)))
	defer span.End()

	restaurant, err := h.catalog.GetRestaurant(ctx, id)
	if err != nil {
		return b.WithError(mapCatalogError(err)).Build()
	}
	if !restaurant.IsActive {
		return b.WithError(errorbank.NotFound("restaurante não encontrado")).Build()
	}
	products, err := h.catalog.ListProducts(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromProducts(products)).Build()
}

func (h *Handler) setActive(c echo.Context) error {
	b := response.New(c)
	var payload dto.ActiveRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	id := c.Param("id")
	ctx, span := httpTracer.Start(c.Request().Context(), "restaurants.setActive", trace.WithAttributes(
		attribute.String("restaurant.id", id),
		attribute.Bool("restaurant.active", *payload.Active),
	))
	defer span.End()

	if err := h.catalog.SetActive(ctx, id, *payload.Active); err != nil {
		return b.WithError(mapCatalogError(err)).Build()
	}
	restaurant, err := h.catalog.GetRestaurant(ctx, id)
	if err != nil {
		return b.WithError(mapCatalogError(err)).Build()
	}
	h.log().Info("restaurant visibility changed", zap.String("restaurant_id", id), zap.Bool("active", restaurant.IsActive))
	return b.WithData(dto.FromRestaurants([]*entity.Restaurant{restaurant})[0]).Build()
}

func (h *Handler) uploadImage(c echo.Context) error {
	b := response.New(c)
	actor, err := session.ActorFrom(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	id := c.Param("id")
	ctx, span := httpTracer.Start(c.Request().Context(), "restaurants.uploadImage", trace.WithAttributes(attribute.String("restaurant.id", id)))
	defer span.End()

	restaurant, err := h.catalog.GetRestaurant(ctx, id)
	if err != nil {
		return b.WithError(mapCatalogError(err)).Build()
	}
	if actor.Role == entity.RoleRestaurant && restaurant.OwnerID != actor.UserID {
		return b.WithError(errorbank.Forbidden("restaurante pertence a outro usuário")).Build()
	}

	header, err := c.FormFile(imageField)
	if err != nil {
		return b.WithError(errorbank.BadRequest("arquivo de imagem ausente", errorbank.WithCause(err))).Build()
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		return b.WithError(errorbank.BadRequest("arquivo muito grande",
			errorbank.WithDetail("max_bytes", h.maxBytes),
			errorbank.WithDetail("size", header.Size),
		)).Build()
	}
	file, err := header.Open()
	if err != nil {
		return b.WithError(errorbank.BadRequest("arquivo de imagem inválido", errorbank.WithCause(err))).Build()
	}
	defer file.Close()

	var body io.Reader = file
	if h.maxBytes > 0 {
		body = io.LimitReader(file, h.maxBytes)
	}
	url, err := h.uploader.Upload(ctx, body, restaurant.ID+"-"+header.Filename)
	if errors.Is(err, upload.ErrDisabled) {
		return b.WithError(errorbank.Unprocessable("upload de imagens não configurado", errorbank.WithCause(err))).Build()
	}
	if err != nil {
		h.log().Error("image upload failed", zap.String("restaurant_id", id), zap.Error(err))
		return b.WithError(errorbank.Internal("falha ao enviar imagem", errorbank.WithCause(err))).Build()
	}
	if err := h.catalog.SetImage(ctx, id, url); err != nil {
		return b.WithError(mapCatalogError(err)).Build()
	}
	return b.WithData(dto.ImageResponse{URL: url}).Build()
}

func (h *Handler) log() *zap.Logger {
	if h.logger == nil {
		return zap.NewNop()
	}
	return h.logger
}

func mapCatalogError(err error) error {
	if errors.Is(err, catalog.ErrRestaurantNotFound) {
		return errorbank.NotFound("restaurante não encontrado", errorbank.WithCause(err))
	}
	return err
}
