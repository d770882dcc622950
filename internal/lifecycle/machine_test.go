package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/NovaByteCorp/deliverypro/internal/entity"
)

var (
	customer   = Actor{UserID: "c1", Role: entity.RoleCustomer}
	owner      = Actor{UserID: "owner1", Role: entity.RoleRestaurant}
	driver     = Actor{UserID: "d1", Role: entity.RoleDriver}
	otherDrv   = Actor{UserID: "d2", Role: entity.RoleDriver}
	admin      = Actor{UserID: "a1", Role: entity.RoleAdmin}
	baseTime   = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	noPolicy   = Policy{}
	driverID   = "d1"
	restaurant = "r1"
)

func newOrder(status entity.OrderStatus) *entity.Order {
	return &entity.Order{
		ID:           "o1",
		RestaurantID: restaurant,
		CustomerID:   customer.UserID,
		Status:       status,
		CreatedDate:  baseTime,
		UpdatedDate:  baseTime,
	}
}

func plan(t *testing.T, o *entity.Order, action Action, actor Actor, at time.Time) Step {
	t.Helper()
	step, err := Plan(o, Request{Action: action, Actor: actor, RestaurantOwnerID: owner.UserID, Now: at}, noPolicy)
	if err != nil {
		t.Fatalf("Plan(%s) error = %v", action, err)
	}
	if !step.Condition.Matches(o) {
		t.Fatalf("Plan(%s) condition does not match the row it was planned from", action)
	}
	step.Patch.Apply(o)
	return step
}

func TestPlan_FullLifecycle(t *testing.T) {
	o := newOrder(entity.StatusPending)

	steps := []struct {
		action Action
		actor  Actor
		want   entity.OrderStatus
	}{
		{ActionConfirm, owner, entity.StatusConfirmed},
		{ActionStartPreparation, owner, entity.StatusPreparing},
		{ActionMarkReady, owner, entity.StatusReady},
		{ActionAccept, driver, entity.StatusAwaitingConfirmation},
		{ActionConfirmPickup, driver, entity.StatusPickedUp},
		{ActionStartDelivery, driver, entity.StatusInDelivery},
		{ActionDeliver, driver, entity.StatusDelivered},
	}

	for i, s := range steps {
		step := plan(t, o, s.action, s.actor, baseTime.Add(time.Duration(i+1)*time.Minute))
		if step.To != s.want || o.Status != s.want {
			t.Fatalf("%s: status = %s, want %s", s.action, o.Status, s.want)
		}
	}

	if !o.AssignedTo(driverID) {
		t.Error("driver should remain assigned after delivery")
	}
	for name, ts := range map[string]*time.Time{
		"ready_at": o.ReadyAt, "picked_up_at": o.PickedUpAt,
		"confirmed_at": o.ConfirmedAt, "delivered_at": o.DeliveredAt,
	} {
		if ts == nil {
			t.Errorf("%s not set", name)
		}
	}
	assertMonotonic(t, o)
}

func TestPlan_TimestampsNeverPrecedeEarlierOnes(t *testing.T) {
	o := newOrder(entity.StatusPreparing)
	plan(t, o, ActionMarkReady, owner, baseTime.Add(10*time.Minute))

	// Clock skew: the driver's request carries an earlier time.
	plan(t, o, ActionAccept, driver, baseTime.Add(5*time.Minute))
	plan(t, o, ActionConfirmPickup, driver, baseTime)
	plan(t, o, ActionStartDelivery, driver, baseTime)
	plan(t, o, ActionDeliver, driver, baseTime.Add(-time.Hour))

	assertMonotonic(t, o)
	if !o.DeliveredAt.Equal(baseTime.Add(10 * time.Minute)) {
		t.Errorf("delivered_at = %v, want clamped to ready_at", o.DeliveredAt)
	}
}

func assertMonotonic(t *testing.T, o *entity.Order) {
	t.Helper()
	prev := o.CreatedDate
	for _, ts := range []*time.Time{o.ReadyAt, o.PickedUpAt, o.ConfirmedAt, o.DeliveredAt} {
		if ts == nil {
			continue
		}
		if ts.Before(prev) {
			t.Fatalf("timestamp %v precedes %v", ts, prev)
		}
		prev = *ts
	}
}

func TestPlan_AcceptGuardsUnassignedReadyOrders(t *testing.T) {
	o := newOrder(entity.StatusReady)
	step := plan(t, o, ActionAccept, driver, baseTime)

	if !step.Condition.DriverUnassigned {
		t.Error("accept must re-check driver_id IS NULL at write time")
	}
	if len(step.Condition.Statuses) != 1 || step.Condition.Statuses[0] != entity.StatusReady {
		t.Errorf("accept condition statuses = %v", step.Condition.Statuses)
	}
	if o.PickedUpAt == nil {
		t.Error("accept should set picked_up_at")
	}

	// The second driver planned against a stale read; the row now fails the guard.
	stale := newOrder(entity.StatusReady)
	lateStep, err := Plan(stale, Request{Action: ActionAccept, Actor: otherDrv, Now: baseTime}, noPolicy)
	if err != nil {
		t.Fatalf("Plan() on stale row error = %v", err)
	}
	if lateStep.Condition.Matches(o) {
		t.Error("stale claim condition must not match a claimed order")
	}

	if _, err := Plan(o, Request{Action: ActionAccept, Actor: otherDrv, Now: baseTime}, noPolicy); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("accept on claimed order error = %v, want ErrInvalidTransition", err)
	}

	claimedReady := newOrder(entity.StatusReady)
	claimedReady.DriverID = &driverID
	if _, err := Plan(claimedReady, Request{Action: ActionAccept, Actor: otherDrv, Now: baseTime}, noPolicy); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("accept with driver set error = %v, want ErrAlreadyClaimed", err)
	}
}

func TestPlan_RejectReturnsOrderToPool(t *testing.T) {
	for _, reason := range []string{"", "pneu furado", "   "} {
		t.Run("reason="+reason, func(t *testing.T) {
			o := newOrder(entity.StatusReady)
			o.Notes = "Sem cebola"
			plan(t, o, ActionAccept, driver, baseTime)

			step := plan(t, o, ActionReject, driver, baseTime.Add(time.Minute))

			if step.Condition.DriverID != driverID {
				t.Errorf("reject condition driver = %q, want %q", step.Condition.DriverID, driverID)
			}
			if o.Status != entity.StatusReady {
				t.Errorf("status = %s, want pronto", o.Status)
			}
			if o.DriverID != nil {
				t.Errorf("driver_id = %v, want nil", *o.DriverID)
			}
			if o.PickedUpAt != nil {
				t.Error("picked_up_at should be cleared")
			}
			if !strings.HasPrefix(o.Notes, "Sem cebola\n"+RejectionNotePrefix) {
				t.Errorf("notes = %q", o.Notes)
			}
			if !strings.HasSuffix(o.Notes, strings.TrimSpace(reason)) {
				t.Errorf("notes = %q should end with reason", o.Notes)
			}
		})
	}
}

func TestPlan_RepeatedRejectsKeepNotesWithinColumn(t *testing.T) {
	o := newOrder(entity.StatusReady)
	o.Notes = strings.Repeat("n", 1000)
	at := baseTime

	var reason string
	for i := 0; i < 12; i++ {
		at = at.Add(time.Minute)
		plan(t, o, ActionAccept, driver, at)

		reason = fmt.Sprintf("%02d%s", i, strings.Repeat("ã", 498))
		step, err := Plan(o, Request{Action: ActionReject, Actor: driver, Reason: reason, Now: at}, noPolicy)
		if err != nil {
			t.Fatalf("reject %d: Plan() error = %v", i, err)
		}
		step.Patch.Apply(o)

		if n := utf8.RuneCountInString(o.Notes); n > MaxNotesLength {
			t.Fatalf("reject %d: notes length = %d, want <= %d", i, n, MaxNotesLength)
		}
		if o.Status != entity.StatusReady || o.DriverID != nil {
			t.Fatalf("reject %d: status = %s, driver = %v", i, o.Status, o.DriverID)
		}
	}
	if !strings.HasSuffix(o.Notes, RejectionNotePrefix+reason) {
		t.Error("latest rejection reason should be kept")
	}
	if strings.HasPrefix(o.Notes, "nnnn") {
		t.Error("oldest note should have been dropped first")
	}
}

func TestAppendNote_TruncatesSingleOversizedNote(t *testing.T) {
	got := appendNote("", strings.Repeat("x", MaxNotesLength+50))
	if n := utf8.RuneCountInString(got); n != MaxNotesLength {
		t.Errorf("length = %d, want %d", n, MaxNotesLength)
	}
}

func TestPlan_DriverActionsRequireAssignment(t *testing.T) {
	tests := []struct {
		status entity.OrderStatus
		action Action
	}{
		{entity.StatusAwaitingConfirmation, ActionConfirmPickup},
		{entity.StatusAwaitingConfirmation, ActionReject},
		{entity.StatusPickedUp, ActionStartDelivery},
		{entity.StatusConfirmed, ActionStartDelivery},
		{entity.StatusInDelivery, ActionDeliver},
		{entity.StatusOutForDelivery, ActionDeliver},
	}

	for _, tt := range tests {
		t.Run(string(tt.action)+"/"+string(tt.status), func(t *testing.T) {
			o := newOrder(tt.status)
			o.DriverID = &driverID

			if _, err := Plan(o, Request{Action: tt.action, Actor: otherDrv, Now: baseTime}, noPolicy); !errors.Is(err, ErrNotAssigned) {
				t.Fatalf("other driver error = %v, want ErrNotAssigned", err)
			}
			step, err := Plan(o, Request{Action: tt.action, Actor: driver, Now: baseTime}, noPolicy)
			if err != nil {
				t.Fatalf("assigned driver error = %v", err)
			}
			if step.Condition.DriverID != driverID {
				t.Errorf("condition driver = %q", step.Condition.DriverID)
			}
		})
	}
}

func TestPlan_RolesAndOwnership(t *testing.T) {
	tests := []struct {
		name   string
		status entity.OrderStatus
		action Action
		actor  Actor
		want   error
	}{
		{"customer cannot confirm", entity.StatusPending, ActionConfirm, customer, ErrForbidden},
		{"driver cannot prepare", entity.StatusConfirmed, ActionStartPreparation, driver, ErrForbidden},
		{"foreign restaurant", entity.StatusPending, ActionConfirm, Actor{UserID: "owner2", Role: entity.RoleRestaurant}, ErrForbidden},
		{"admin may confirm", entity.StatusPending, ActionConfirm, admin, nil},
		{"restaurant cannot accept", entity.StatusReady, ActionAccept, owner, ErrForbidden},
		{"restaurant cannot cancel", entity.StatusPending, ActionCancel, owner, ErrForbidden},
		{"other customer cannot cancel", entity.StatusPending, ActionCancel, Actor{UserID: "c2", Role: entity.RoleCustomer}, ErrForbidden},
		{"unknown action", entity.StatusPending, Action("teleport"), admin, ErrUnknownAction},
		{"ready twice", entity.StatusReady, ActionMarkReady, owner, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(newOrder(tt.status), Request{
				Action: tt.action, Actor: tt.actor, RestaurantOwnerID: owner.UserID, Now: baseTime,
			}, noPolicy)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPlan_Cancel(t *testing.T) {
	for _, s := range entity.AllStatuses {
		t.Run(string(s), func(t *testing.T) {
			o := newOrder(s)
			_, err := Plan(o, Request{Action: ActionCancel, Actor: customer, Now: baseTime}, noPolicy)
			if s.Terminal() {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("cancel from %s error = %v, want ErrInvalidTransition", s, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("cancel from %s error = %v", s, err)
			}
		})
	}

	t.Run("time limit binds customers only", func(t *testing.T) {
		policy := Policy{CancellationTimeLimit: 5 * time.Minute}
		late := baseTime.Add(6 * time.Minute)

		if _, err := Plan(newOrder(entity.StatusPending), Request{Action: ActionCancel, Actor: customer, Now: late}, policy); !errors.Is(err, ErrCancellationExpired) {
			t.Fatalf("customer late cancel error = %v, want ErrCancellationExpired", err)
		}
		step, err := Plan(newOrder(entity.StatusPending), Request{Action: ActionCancel, Actor: admin, Now: late}, policy)
		if err != nil {
			t.Fatalf("admin late cancel error = %v", err)
		}
		if step.Condition.CustomerID != "" {
			t.Error("admin cancel should not pin the customer")
		}
		if _, err := Plan(newOrder(entity.StatusPending), Request{Action: ActionCancel, Actor: customer, Now: baseTime.Add(time.Minute)}, policy); err != nil {
			t.Fatalf("customer early cancel error = %v", err)
		}
	})
}

func TestAllowed(t *testing.T) {
	o := newOrder(entity.StatusAwaitingConfirmation)
	o.DriverID = &driverID

	got := Allowed(o, driver, owner.UserID, noPolicy, baseTime)
	want := []Action{ActionConfirmPickup, ActionReject}
	if len(got) != len(want) {
		t.Fatalf("Allowed() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Allowed() = %v, want %v", got, want)
		}
	}

	if got := Allowed(o, customer, owner.UserID, noPolicy, baseTime); len(got) != 1 || got[0] != ActionCancel {
		t.Errorf("customer Allowed() = %v, want [cancel]", got)
	}
}

func TestDriverViews(t *testing.T) {
	other := "d2"
	orders := []*entity.Order{
		{ID: "ready", Status: entity.StatusReady, CreatedDate: baseTime},
		{ID: "ready-claimed", Status: entity.StatusReady, DriverID: &other, CreatedDate: baseTime},
		{ID: "waiting", Status: entity.StatusAwaitingConfirmation, DriverID: &driverID, CreatedDate: baseTime},
		{ID: "carrying", Status: entity.StatusInDelivery, DriverID: &driverID, CreatedDate: baseTime.Add(time.Minute)},
		{ID: "legacy", Status: entity.StatusConfirmed, DriverID: &driverID, CreatedDate: baseTime.Add(2 * time.Minute)},
		{ID: "foreign", Status: entity.StatusPickedUp, DriverID: &other, CreatedDate: baseTime},
		{ID: "done", Status: entity.StatusDelivered, DriverID: &driverID, CreatedDate: baseTime},
	}

	ids := func(list []*entity.Order) []string {
		out := make([]string, len(list))
		for i, o := range list {
			out[i] = o.ID
		}
		return out
	}

	if got := ids(Filter(orders, AvailableForDrivers())); len(got) != 1 || got[0] != "ready" {
		t.Errorf("available = %v", got)
	}
	if got := ids(Filter(orders, PendingConfirmation(driverID))); len(got) != 1 || got[0] != "waiting" {
		t.Errorf("pending confirmation = %v", got)
	}
	if got := ids(Filter(orders, ActiveDeliveries(driverID))); len(got) != 2 || got[0] != "legacy" || got[1] != "carrying" {
		t.Errorf("active deliveries = %v, want newest first [legacy carrying]", got)
	}
}

func TestSummarize(t *testing.T) {
	orders := []*entity.Order{
		{Status: entity.StatusPending, TotalAmount: decimal.RequireFromString("10")},
		{Status: entity.StatusInDelivery, TotalAmount: decimal.RequireFromString("20")},
		{Status: entity.StatusDelivered, TotalAmount: decimal.RequireFromString("57.50")},
		{Status: entity.StatusDelivered, TotalAmount: decimal.RequireFromString("12.25")},
		{Status: entity.StatusCancelled, TotalAmount: decimal.RequireFromString("99")},
		nil,
	}

	sum := Summarize(orders)
	if sum.Total != 5 {
		t.Errorf("Total = %d, want 5", sum.Total)
	}
	if sum.ByBucket[BucketActive] != 2 || sum.ByBucket[BucketDelivered] != 2 || sum.ByBucket[BucketCancelled] != 1 {
		t.Errorf("ByBucket = %v", sum.ByBucket)
	}
	if sum.ByStatus[entity.StatusDelivered] != 2 {
		t.Errorf("ByStatus[entregue] = %d", sum.ByStatus[entity.StatusDelivered])
	}
	if !sum.TotalSpent.Equal(decimal.RequireFromString("69.75")) {
		t.Errorf("TotalSpent = %s, want 69.75", sum.TotalSpent)
	}
}
