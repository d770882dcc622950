package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NovaByteCorp/deliverypro/internal/database"
	"github.com/NovaByteCorp/deliverypro/internal/entity"
	"github.com/NovaByteCorp/deliverypro/internal/lifecycle"
)

var repoTracer = otel.Tracer("github.com/NovaByteCorp/deliverypro/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// UpdateResult is the outcome of a conditional update.
type UpdateResult int

const (
	// Applied means the row matched the condition and was written.
	Applied UpdateResult = iota + 1
	// ConditionFailed means the row exists but no longer satisfies the condition.
	ConditionFailed
	// NotFound means no row has the given id.
	NotFound
)

func (r UpdateResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case ConditionFailed:
		return "condition_failed"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Repository encapsulates read/write access for orders and their items.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new order row without its items.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", order.OrderNumber)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// CreateItems bulk inserts the item rows of an order.
func (r *Repository) CreateItems(ctx context.Context, items []*entity.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CreateItems", trace.WithAttributes(attribute.Int("items.count", len(items))))
	defer span.End()

	_, err := r.writer.NewInsert().Model(&items).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// Delete removes an order and its items. Used to compensate a failed checkout.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Delete", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	if _, err := r.writer.NewDelete().Model((*entity.OrderItem)(nil)).Where("order_id = ?", id).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete items failed")
		return err
	}
	if _, err := r.writer.NewDelete().Model((*entity.Order)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	return nil
}

// GetByID fetches an order with its items using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Relation("Items").Where("o.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// GetFresh reads an order and its items from the writer, bypassing replica
// lag. Callers use it before planning a transition and when filling the cache.
func (r *Repository) GetFresh(ctx context.Context, id string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetFresh", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.writer.NewSelect().Model(order).Relation("Items").Where("o.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// ListWhere returns the orders matching cond, newest first. Items are not loaded.
func (r *Repository) ListWhere(ctx context.Context, cond lifecycle.Condition) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListWhere")
	defer span.End()

	var orders []*entity.Order
	q := r.reader.NewSelect().Model(&orders).OrderExpr("o.created_date DESC")
	q = q.ApplyQueryBuilder(func(qb bun.QueryBuilder) bun.QueryBuilder {
		return whereCondition(qb, "o.", cond)
	})
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// ListByCustomer returns every order placed by customerID.
func (r *Repository) ListByCustomer(ctx context.Context, customerID string) ([]*entity.Order, error) {
	return r.ListWhere(ctx, lifecycle.Condition{CustomerID: customerID})
}

// ListByRestaurant returns orders of one restaurant, optionally narrowed by status.
func (r *Repository) ListByRestaurant(ctx context.Context, restaurantID string, statuses ...entity.OrderStatus) ([]*entity.Order, error) {
	return r.ListWhere(ctx, lifecycle.Condition{RestaurantID: restaurantID, Statuses: statuses})
}

// ListAvailable returns ready orders no driver has claimed.
func (r *Repository) ListAvailable(ctx context.Context) ([]*entity.Order, error) {
	return r.ListWhere(ctx, lifecycle.AvailableForDrivers())
}

// ListForDriver returns orders held by driverID in one of statuses.
func (r *Repository) ListForDriver(ctx context.Context, driverID string, statuses ...entity.OrderStatus) ([]*entity.Order, error) {
	if driverID == "" {
		return nil, errors.New("driver id is required")
	}
	return r.ListWhere(ctx, lifecycle.Condition{DriverID: driverID, Statuses: statuses})
}

// UpdateIf writes patch to the order only if the stored row still satisfies
// cond. The check and the write happen in a single UPDATE statement.
func (r *Repository) UpdateIf(ctx context.Context, id string, cond lifecycle.Condition, patch lifecycle.Patch) (UpdateResult, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateIf", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(patch.Status)),
	))
	defer span.End()

	q := r.writer.NewUpdate().Model((*entity.Order)(nil)).Where("id = ?", id)
	q, err := setPatch(q, patch)
	if err != nil {
		return 0, err
	}
	q = q.ApplyQueryBuilder(func(qb bun.QueryBuilder) bun.QueryBuilder {
		return whereCondition(qb, "", cond)
	})

	res, err := q.Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		span.SetAttributes(attribute.String("update.result", Applied.String()))
		return Applied, nil
	}

	exists, err := r.writer.NewSelect().Model((*entity.Order)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "existence check failed")
		return 0, err
	}
	result := ConditionFailed
	if !exists {
		result = NotFound
	}
	span.SetAttributes(attribute.String("update.result", result.String()))
	return result, nil
}

func setPatch(q *bun.UpdateQuery, p lifecycle.Patch) (*bun.UpdateQuery, error) {
	if p.Status == "" {
		return nil, errors.New("patch without status")
	}
	q = q.Set("status = ?", p.Status)
	if !p.UpdatedDate.IsZero() {
		q = q.Set("updated_date = ?", p.UpdatedDate)
	}
	if p.DriverID.IsSet() {
		q = setNullable(q, "driver_id", p.DriverID.Value())
	}
	if p.Notes.IsSet() {
		notes := ""
		if v := p.Notes.Value(); v != nil {
			notes = *v
		}
		q = q.Set("notes = ?", notes)
	}
	if p.ReadyAt.IsSet() {
		q = setNullable(q, "ready_at", p.ReadyAt.Value())
	}
	if p.PickedUpAt.IsSet() {
		q = setNullable(q, "picked_up_at", p.PickedUpAt.Value())
	}
	if p.ConfirmedAt.IsSet() {
		q = setNullable(q, "confirmed_at", p.ConfirmedAt.Value())
	}
	if p.DeliveredAt.IsSet() {
		q = setNullable(q, "delivered_at", p.DeliveredAt.Value())
	}
	if p.CancelledAt.IsSet() {
		q = setNullable(q, "cancelled_at", p.CancelledAt.Value())
	}
	return q, nil
}

func setNullable[T any](q *bun.UpdateQuery, column string, v *T) *bun.UpdateQuery {
	if v == nil {
		return q.Set("? = NULL", bun.Ident(column))
	}
	return q.Set("? = ?", bun.Ident(column), *v)
}

func whereCondition(qb bun.QueryBuilder, prefix string, c lifecycle.Condition) bun.QueryBuilder {
	col := func(name string) string { return prefix + name }

	if len(c.Statuses) > 0 {
		qb = qb.Where(col("status")+" IN (?)", bun.In(c.Statuses))
	}
	if c.DriverUnassigned {
		qb = qb.Where(col("driver_id") + " IS NULL")
	}
	if c.DriverID != "" {
		qb = qb.Where(col("driver_id")+" = ?", c.DriverID)
	}
	if c.CustomerID != "" {
		qb = qb.Where(col("customer_id")+" = ?", c.CustomerID)
	}
	if c.RestaurantID != "" {
		qb = qb.Where(col("restaurant_id")+" = ?", c.RestaurantID)
	}
	return qb
}
