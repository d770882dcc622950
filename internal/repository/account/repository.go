package account

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NovaByteCorp/deliverypro/internal/database"
	"github.com/NovaByteCorp/deliverypro/internal/entity"
)

var repoTracer = otel.Tracer("github.com/NovaByteCorp/deliverypro/repository/account")

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrDeliveryPersonNotFound = errors.New("delivery person not found")
)

// Repository gives read access to users and driver profiles.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires an account repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// GetUser fetches a user by id.
func (r *Repository) GetUser(ctx context.Context, id string) (*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "AccountRepository.GetUser", trace.WithAttributes(attribute.String("user.id", id)))
	defer span.End()

	user := new(entity.User)
	err := r.reader.NewSelect().Model(user).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return user, nil
}

// GetDeliveryPerson fetches the driver profile of userID.
func (r *Repository) GetDeliveryPerson(ctx context.Context, userID string) (*entity.DeliveryPerson, error) {
	ctx, span := repoTracer.Start(ctx, "AccountRepository.GetDeliveryPerson", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	dp := new(entity.DeliveryPerson)
	err := r.reader.NewSelect().Model(dp).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeliveryPersonNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return dp, nil
}
