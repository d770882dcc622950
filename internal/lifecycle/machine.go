// Package lifecycle describes the order workflow: which transitions exist, who
// may fire them, what each one writes and which predicate the write must
// re-check against the stored row.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/NovaByteCorp/deliverypro/internal/entity"
)

// Action names a transition trigger.
type Action string

const (
	ActionConfirm          Action = "confirm"
	ActionStartPreparation Action = "start_preparation"
	ActionMarkReady        Action = "mark_ready"
	ActionAccept           Action = "accept"
	ActionConfirmPickup    Action = "confirm_pickup"
	ActionReject           Action = "reject"
	ActionStartDelivery    Action = "start_delivery"
	ActionDeliver          Action = "deliver"
	ActionCancel           Action = "cancel"
)

// RejectionNotePrefix precedes the reason appended to notes on reject.
const RejectionNotePrefix = "Rejeitado pelo entregador: "

// MaxNotesLength is the width of orders.notes in characters.
const MaxNotesLength = 4000

var (
	ErrUnknownAction       = errors.New("unknown action")
	ErrInvalidTransition   = errors.New("transition not allowed from current status")
	ErrForbidden           = errors.New("actor may not perform this action")
	ErrNotAssigned         = errors.New("order is not assigned to this driver")
	ErrAlreadyClaimed      = errors.New("order already claimed by a driver")
	ErrCancellationExpired = errors.New("cancellation time limit exceeded")
)

// Actor is the authenticated user triggering an action.
type Actor struct {
	UserID string
	Role   entity.Role
}

// Policy carries configurable guards.
type Policy struct {
	// CancellationTimeLimit bounds customer cancellations measured from
	// created_date. Zero disables the check; admins are never bound.
	CancellationTimeLimit time.Duration
}

// Request asks for one transition.
type Request struct {
	Action Action
	Actor  Actor
	// Reason is appended to notes on reject; empty is allowed.
	Reason string
	// RestaurantOwnerID authorises restaurant actors.
	RestaurantOwnerID string
	Now               time.Time
}

// Step is a planned transition ready to be written with a conditional update.
type Step struct {
	Action    Action
	From      entity.OrderStatus
	To        entity.OrderStatus
	Condition Condition
	Patch     Patch
}

type rule struct {
	from  []entity.OrderStatus
	to    entity.OrderStatus
	roles []entity.Role
}

var (
	restaurantRoles = []entity.Role{entity.RoleRestaurant, entity.RoleAdmin}
	driverRoles     = []entity.Role{entity.RoleDriver}
	cancelRoles     = []entity.Role{entity.RoleCustomer, entity.RoleAdmin}
)

var rules = map[Action]rule{
	ActionConfirm: {
		from:  []entity.OrderStatus{entity.StatusPending},
		to:    entity.StatusConfirmed,
		roles: restaurantRoles,
	},
	ActionStartPreparation: {
		from:  []entity.OrderStatus{entity.StatusConfirmed},
		to:    entity.StatusPreparing,
		roles: restaurantRoles,
	},
	ActionMarkReady: {
		from:  []entity.OrderStatus{entity.StatusPreparing},
		to:    entity.StatusReady,
		roles: restaurantRoles,
	},
	ActionAccept: {
		from:  []entity.OrderStatus{entity.StatusReady},
		to:    entity.StatusAwaitingConfirmation,
		roles: driverRoles,
	},
	ActionConfirmPickup: {
		from:  []entity.OrderStatus{entity.StatusAwaitingConfirmation},
		to:    entity.StatusPickedUp,
		roles: driverRoles,
	},
	ActionReject: {
		from:  []entity.OrderStatus{entity.StatusAwaitingConfirmation},
		to:    entity.StatusReady,
		roles: driverRoles,
	},
	ActionStartDelivery: {
		from:  []entity.OrderStatus{entity.StatusPickedUp, entity.StatusConfirmed},
		to:    entity.StatusInDelivery,
		roles: driverRoles,
	},
	ActionDeliver: {
		from:  []entity.OrderStatus{entity.StatusInDelivery, entity.StatusOutForDelivery},
		to:    entity.StatusDelivered,
		roles: driverRoles,
	},
	ActionCancel: {
		from:  cancellable(),
		to:    entity.StatusCancelled,
		roles: cancelRoles,
	},
}

func cancellable() []entity.OrderStatus {
	var out []entity.OrderStatus
	for _, s := range entity.AllStatuses {
		if !s.Terminal() {
			out = append(out, s)
		}
	}
	return out
}

// Plan validates req against the current row and returns the step to write.
// It never mutates order.
func Plan(order *entity.Order, req Request, policy Policy) (Step, error) {
	r, ok := rules[req.Action]
	if !ok {
		return Step{}, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	if !hasRole(r.roles, req.Actor.Role) {
		return Step{}, fmt.Errorf("%w: %s cannot %s", ErrForbidden, req.Actor.Role, req.Action)
	}
	if !containsStatus(r.from, order.Status) {
		return Step{}, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, req.Action, order.Status)
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	step := Step{
		Action: req.Action,
		From:   order.Status,
		To:     r.to,
		Condition: Condition{
			Statuses: []entity.OrderStatus{order.Status},
		},
		Patch: Patch{
			Status:      r.to,
			UpdatedDate: now,
		},
	}

	switch req.Action {
	case ActionConfirm, ActionStartPreparation, ActionMarkReady:
		if req.Actor.Role == entity.RoleRestaurant && req.Actor.UserID != req.RestaurantOwnerID {
			return Step{}, fmt.Errorf("%w: restaurant not owned by actor", ErrForbidden)
		}
		step.Condition.RestaurantID = order.RestaurantID
		if req.Action == ActionMarkReady {
			step.Patch.ReadyAt = Set(clamp(now, order.CreatedDate))
		}

	case ActionAccept:
		if !order.Unassigned() {
			return Step{}, ErrAlreadyClaimed
		}
		step.Condition.DriverUnassigned = true
		step.Patch.DriverID = Set(req.Actor.UserID)
		step.Patch.PickedUpAt = Set(clamp(now, order.CreatedDate, deref(order.ReadyAt)))

	case ActionConfirmPickup:
		if !order.AssignedTo(req.Actor.UserID) {
			return Step{}, ErrNotAssigned
		}
		step.Condition.DriverID = req.Actor.UserID
		step.Patch.ConfirmedAt = Set(clamp(now, order.CreatedDate, deref(order.ReadyAt), deref(order.PickedUpAt)))

	case ActionReject:
		if !order.AssignedTo(req.Actor.UserID) {
			return Step{}, ErrNotAssigned
		}
		step.Condition.DriverID = req.Actor.UserID
		step.Patch.DriverID = Clear[string]()
		step.Patch.PickedUpAt = Clear[time.Time]()
		step.Patch.Notes = Set(appendNote(order.Notes, RejectionNotePrefix+strings.TrimSpace(req.Reason)))

	case ActionStartDelivery:
		if !order.AssignedTo(req.Actor.UserID) {
			return Step{}, ErrNotAssigned
		}
		step.Condition.DriverID = req.Actor.UserID

	case ActionDeliver:
		if !order.AssignedTo(req.Actor.UserID) {
			return Step{}, ErrNotAssigned
		}
		step.Condition.DriverID = req.Actor.UserID
		step.Patch.DeliveredAt = Set(clamp(now, order.CreatedDate, deref(order.ReadyAt), deref(order.PickedUpAt), deref(order.ConfirmedAt)))

	case ActionCancel:
		if req.Actor.Role == entity.RoleCustomer {
			if order.CustomerID != req.Actor.UserID {
				return Step{}, fmt.Errorf("%w: order belongs to another customer", ErrForbidden)
			}
			if limit := policy.CancellationTimeLimit; limit > 0 && now.Sub(order.CreatedDate) > limit {
				return Step{}, ErrCancellationExpired
			}
			step.Condition.CustomerID = req.Actor.UserID
		}
		step.Patch.CancelledAt = Set(clamp(now, order.CreatedDate, deref(order.ReadyAt), deref(order.PickedUpAt), deref(order.ConfirmedAt)))
	}

	return step, nil
}

// Allowed lists the actions actor could attempt on order right now.
func Allowed(order *entity.Order, actor Actor, restaurantOwnerID string, policy Policy, now time.Time) []Action {
	var actions []Action
	for _, action := range actionOrder {
		req := Request{Action: action, Actor: actor, RestaurantOwnerID: restaurantOwnerID, Now: now}
		if _, err := Plan(order, req, policy); err == nil {
			actions = append(actions, action)
		}
	}
	return actions
}

var actionOrder = []Action{
	ActionConfirm,
	ActionStartPreparation,
	ActionMarkReady,
	ActionAccept,
	ActionConfirmPickup,
	ActionReject,
	ActionStartDelivery,
	ActionDeliver,
	ActionCancel,
}

func hasRole(roles []entity.Role, role entity.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// appendNote adds note on its own line. When the result would not fit in
// MaxNotesLength the oldest lines are dropped first.
func appendNote(existing, note string) string {
	out := note
	if existing = strings.TrimRight(existing, "\n "); existing != "" {
		out = existing + "\n" + note
	}
	for utf8.RuneCountInString(out) > MaxNotesLength {
		i := strings.IndexByte(out, '\n')
		if i < 0 {
			return string([]rune(out)[:MaxNotesLength])
		}
		out = out[i+1:]
	}
	return out
}

// clamp returns the latest of now and the given lower bounds so a new
// timestamp never precedes an earlier lifecycle timestamp.
func clamp(now time.Time, floors ...time.Time) time.Time {
	out := now
	for _, f := range floors {
		if f.After(out) {
			out = f
		}
	}
	return out
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
