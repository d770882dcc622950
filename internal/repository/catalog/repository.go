package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NovaByteCorp/deliverypro/internal/database"
	"github.com/NovaByteCorp/deliverypro/internal/entity"
)

var repoTracer = otel.Tracer("github.com/NovaByteCorp/deliverypro/repository/catalog")

var (
	// ErrRestaurantNotFound is returned when a restaurant is missing.
	ErrRestaurantNotFound = errors.New("restaurant not found")
)

// Repository reads and maintains restaurants and their products.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a catalog repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// GetRestaurant fetches a restaurant regardless of its active flag.
func (r *Repository) GetRestaurant(ctx context.Context, id string) (*entity.Restaurant, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.GetRestaurant", trace.WithAttributes(attribute.String("restaurant.id", id)))
	defer span.End()

	restaurant := new(entity.Restaurant)
	err := r.reader.NewSelect().Model(restaurant).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRestaurantNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return restaurant, nil
}

// ListRestaurants returns restaurants ordered by name. activeOnly hides
// restaurants switched off by an admin.
func (r *Repository) ListRestaurants(ctx context.Context, activeOnly bool) ([]*entity.Restaurant, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.ListRestaurants")
	defer span.End()

	var restaurants []*entity.Restaurant
	q := r.reader.NewSelect().Model(&restaurants).OrderExpr("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return restaurants, nil
}

// SetActive toggles the customer-facing visibility of a restaurant.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, "CatalogRepository.SetActive", id, "is_active = ?", active)
}

// SetImage stores the public URL of the restaurant image.
func (r *Repository) SetImage(ctx context.Context, id, url string) error {
	return r.update(ctx, "CatalogRepository.SetImage", id, "image_url = ?", url)
}

func (r *Repository) update(ctx context.Context, spanName, id, set string, value any) error {
	ctx, span := repoTracer.Start(ctx, spanName, trace.WithAttributes(attribute.String("restaurant.id", id)))
	defer span.End()

	res, err := r.writer.NewUpdate().Model((*entity.Restaurant)(nil)).
		Set(set, value).
		Set("updated_date = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRestaurantNotFound
	}
	return nil
}

// ListProducts returns the products of a restaurant.
func (r *Repository) ListProducts(ctx context.Context, restaurantID string) ([]*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.ListProducts", trace.WithAttributes(attribute.String("restaurant.id", restaurantID)))
	defer span.End()

	var products []*entity.Product
	if err := r.reader.NewSelect().Model(&products).Where("restaurant_id = ?", restaurantID).OrderExpr("name ASC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return products, nil
}

// GetProducts resolves products by id. Missing ids are simply absent from
// the result.
func (r *Repository) GetProducts(ctx context.Context, ids []string) (map[string]*entity.Product, error) {
	out := make(map[string]*entity.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.GetProducts", trace.WithAttributes(attribute.Int("products.count", len(ids))))
	defer span.End()

	var products []*entity.Product
	if err := r.reader.NewSelect().Model(&products).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}
