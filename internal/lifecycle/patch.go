package lifecycle

import (
	"time"

	"github.com/NovaByteCorp/deliverypro/internal/entity"
)

// Field is an optional column assignment. The zero value leaves the column
// untouched; Set writes a value and Clear writes NULL.
type Field[T any] struct {
	set   bool
	value *T
}

// Set assigns v.
func Set[T any](v T) Field[T] {
	return Field[T]{set: true, value: &v}
}

// Clear assigns NULL.
func Clear[T any]() Field[T] {
	return Field[T]{set: true}
}

// IsSet reports whether the field participates in the update.
func (f Field[T]) IsSet() bool { return f.set }

// Value returns the assigned value, nil meaning NULL.
func (f Field[T]) Value() *T { return f.value }

func (f Field[T]) applyTo(dst **T) {
	if !f.set {
		return
	}
	if f.value == nil {
		*dst = nil
		return
	}
	v := *f.value
	*dst = &v
}

// Patch is the set of column changes a transition writes.
type Patch struct {
	Status      entity.OrderStatus
	UpdatedDate time.Time
	DriverID    Field[string]
	Notes       Field[string]
	ReadyAt     Field[time.Time]
	PickedUpAt  Field[time.Time]
	ConfirmedAt Field[time.Time]
	DeliveredAt Field[time.Time]
	CancelledAt Field[time.Time]
}

// Apply mirrors the patch onto an in-memory copy of the row.
func (p Patch) Apply(o *entity.Order) {
	if p.Status != "" {
		o.Status = p.Status
	}
	if !p.UpdatedDate.IsZero() {
		o.UpdatedDate = p.UpdatedDate
	}
	p.DriverID.applyTo(&o.DriverID)
	if p.Notes.IsSet() {
		o.Notes = ""
		if v := p.Notes.Value(); v != nil {
			o.Notes = *v
		}
	}
	p.ReadyAt.applyTo(&o.ReadyAt)
	p.PickedUpAt.applyTo(&o.PickedUpAt)
	p.ConfirmedAt.applyTo(&o.ConfirmedAt)
	p.DeliveredAt.applyTo(&o.DeliveredAt)
	p.CancelledAt.applyTo(&o.CancelledAt)
}

// Condition is the predicate a conditional update re-checks against the
// current row at write time.
type Condition struct {
	// Statuses restricts the current status; empty means any.
	Statuses []entity.OrderStatus
	// DriverUnassigned requires driver_id IS NULL.
	DriverUnassigned bool
	// DriverID requires driver_id to equal this value when non-empty.
	DriverID string
	// CustomerID requires customer_id to equal this value when non-empty.
	CustomerID string
	// RestaurantID requires restaurant_id to equal this value when non-empty.
	RestaurantID string
}

// Matches evaluates the condition against an in-memory row.
func (c Condition) Matches(o *entity.Order) bool {
	if o == nil {
		return false
	}
	if len(c.Statuses) > 0 && !containsStatus(c.Statuses, o.Status) {
		return false
	}
	if c.DriverUnassigned && !o.Unassigned() {
		return false
	}
	if c.DriverID != "" && !o.AssignedTo(c.DriverID) {
		return false
	}
	if c.CustomerID != "" && o.CustomerID != c.CustomerID {
		return false
	}
	if c.RestaurantID != "" && o.RestaurantID != c.RestaurantID {
		return false
	}
	return true
}

func containsStatus(list []entity.OrderStatus, s entity.OrderStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}
