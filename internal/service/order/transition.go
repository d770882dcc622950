package order

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/entity"
	"github.com/NovaByteCorp/deliverypro/internal/lifecycle"
	"github.com/NovaByteCorp/deliverypro/internal/repository/account"
	repo "github.com/NovaByteCorp/deliverypro/internal/repository/order"
	"github.com/NovaByteCorp/deliverypro/pkg/errorbank"
)

// Confirm moves a pending order to confirmado.
func (s *Service) Confirm(ctx context.Context, actor lifecycle.Actor, id string) (*entity.Order, error) {
	return s.Transition(ctx, actor, id, lifecycle.ActionConfirm, "")
}

// StartPreparation moves a confirmed order to em_preparacao.
func (s *Service) StartPreparation(ctx context.Context, actor lifecycle.Actor, id string) (*entity.Order, error) {
	return s.Transition(ctx, actor, id, lifecycle.ActionStartPreparation, "")
}

// MarkReady moves an order to pronto, putting it on the drivers' board.
func (s *Service) MarkReady(ctx context.Context, actor lifecycle.Actor, id string) (*entity.Order, error) {
	return s.Transition(ctx, actor, id, lifecycle.ActionMarkReady, "")
}

// Accept claims a ready order for the driver. Losing a race yields
// ErrOrderUnavailable.
func (s *Service) Accept(ctx context.Context, actor lifecycle.Actor, id string) (*entity.Order, error) {
	return s.Transition(ctx, actor, id, lifecycle.ActionAccept, "")
}

// ConfirmPickup confirms the driver collected the order.
func (s *Service) ConfirmPickup(ctx context.Context, actor lifecycle.Actor, id string) (*entity.Order, error) {
	return s.Transition(ctx, actor, id, lifecycle.ActionConfirmPickup, "")
}

// Reject hands a claimed order back to the pool. reason may be empty.
func (s *Service) Reject(ctx context.Context, actor lifecycle.Actor, id, reason string) (*entity.Order, error) {
	return s.Transition(ctx, actor, id, lifecycle.ActionReject, reason)
}

// StartDelivery moves a collected order to em_entrega.
func (s *Service) StartDelivery(ctx context.Context, actor lifecycle.Actor, id string) (*entity.Order, error) {
	return s.Transition(ctx, actor, id, lifecycle.ActionStartDelivery, "")
}

// Deliver completes the order.
func (s *Service) Deliver(ctx context.Context, actor lifecycle.Actor, id string) (*entity.Order, error) {
	return s.Transition(ctx, actor, id, lifecycle.ActionDeliver, "")
}

// Cancel cancels a non-terminal order.
func (s *Service) Cancel(ctx context.Context, actor lifecycle.Actor, id string) (*entity.Order, error) {
	return s.Transition(ctx, actor, id, lifecycle.ActionCancel, "")
}

// Transition plans action against the current row and writes it with a single
// conditional update. Nothing is cached or published unless the write applied.
func (s *Service) Transition(ctx context.Context, actor lifecycle.Actor, id string, action lifecycle.Action, reason string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Transition", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.action", string(action)),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer span.End()

	order, err := s.orders.GetFresh(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("pedido não encontrado")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("falha ao carregar pedido", errorbank.WithCause(err))
	}

	req := lifecycle.Request{Action: action, Actor: actor, Reason: reason, Now: s.now()}
	if actor.Role == entity.RoleRestaurant {
		if req.RestaurantOwnerID, err = s.restaurantOwner(ctx, order.RestaurantID); err != nil {
			return nil, err
		}
	}
	if action == lifecycle.ActionAccept {
		if err := s.requireDriverProfile(ctx, actor); err != nil {
			return nil, err
		}
	}

	step, err := lifecycle.Plan(order, req, s.policy)
	if err != nil {
		s.metrics.Transition(ctx, string(action), "rejected")
		if action == lifecycle.ActionAccept && actor.Role == entity.RoleDriver &&
			(errors.Is(err, lifecycle.ErrInvalidTransition) || errors.Is(err, lifecycle.ErrAlreadyClaimed)) {
			// Someone moved the order off the board between listing and claiming.
			return nil, errorbank.Conflict("pedido não está mais disponível", errorbank.WithCause(errors.Join(ErrOrderUnavailable, err)))
		}
		return nil, planError(err)
	}

	result, err := s.orders.UpdateIf(ctx, id, step.Condition, step.Patch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		s.metrics.Transition(ctx, string(action), "error")
		return nil, errorbank.Internal("falha ao atualizar pedido", errorbank.WithCause(err))
	}
	s.metrics.Transition(ctx, string(action), result.String())

	switch result {
	case repo.Applied:
	case repo.NotFound:
		return nil, errorbank.NotFound("pedido não encontrado")
	default:
		s.Invalidate(ctx, id)
		if action == lifecycle.ActionAccept {
			s.metrics.ClaimConflict(ctx)
			s.logger.Info("claim lost to another driver", zap.String("order_id", id), zap.String("driver_id", actor.UserID))
			return nil, errorbank.Conflict("pedido não está mais disponível", errorbank.WithCause(ErrOrderUnavailable))
		}
		return nil, errorbank.Conflict("o pedido foi alterado, atualize e tente novamente", errorbank.WithCause(ErrConcurrentUpdate))
	}

	step.Patch.Apply(order)
	s.Invalidate(ctx, id)
	s.publisher.Publish(ctx, NewEvent(EventTransitioned, order, string(action), step.From))
	s.logger.Info("order transitioned",
		zap.String("order_id", id),
		zap.String("action", string(action)),
		zap.String("from", string(step.From)),
		zap.String("to", string(step.To)),
		zap.String("actor_id", actor.UserID),
	)
	return order, nil
}

func (s *Service) requireDriverProfile(ctx context.Context, actor lifecycle.Actor) error {
	if actor.Role != entity.RoleDriver {
		return nil
	}
	_, err := s.drivers.GetDeliveryPerson(ctx, actor.UserID)
	if errors.Is(err, account.ErrDeliveryPersonNotFound) {
		return errorbank.Forbidden("entregador sem cadastro")
	}
	if err != nil {
		return errorbank.Internal("falha ao carregar entregador", errorbank.WithCause(err))
	}
	return nil
}

func planError(err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrUnknownAction):
		return errorbank.BadRequest("ação desconhecida", errorbank.WithCause(err))
	case errors.Is(err, lifecycle.ErrForbidden), errors.Is(err, lifecycle.ErrNotAssigned):
		return errorbank.Forbidden("ação não permitida para este usuário", errorbank.WithCause(err))
	case errors.Is(err, lifecycle.ErrCancellationExpired):
		return errorbank.Unprocessable("prazo de cancelamento expirado", errorbank.WithCause(err))
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return errorbank.Conflict("transição inválida para o status atual", errorbank.WithCause(err))
	default:
		return errorbank.Internal("falha ao planejar transição", errorbank.WithCause(err))
	}
}
