package lifecycle

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/NovaByteCorp/deliverypro/internal/entity"
)

var (
	pendingConfirmationStatuses = []entity.OrderStatus{
		entity.StatusAwaitingConfirmation,
	}
	activeDeliveryStatuses = []entity.OrderStatus{
		entity.StatusPickedUp,
		entity.StatusConfirmed,
		entity.StatusInDelivery,
		entity.StatusOutForDelivery,
	}
)

// AvailableForDrivers selects ready orders nobody has claimed.
func AvailableForDrivers() Condition {
	return Condition{
		Statuses:         []entity.OrderStatus{entity.StatusReady},
		DriverUnassigned: true,
	}
}

// PendingConfirmation selects orders a driver accepted but has not confirmed.
func PendingConfirmation(driverID string) Condition {
	return Condition{
		Statuses: append([]entity.OrderStatus(nil), pendingConfirmationStatuses...),
		DriverID: driverID,
	}
}

// ActiveDeliveries selects orders a driver is carrying.
func ActiveDeliveries(driverID string) Condition {
	return Condition{
		Statuses: append([]entity.OrderStatus(nil), activeDeliveryStatuses...),
		DriverID: driverID,
	}
}

// Bucket groups statuses the way the customer order pages do.
type Bucket string

const (
	BucketActive    Bucket = "active"
	BucketDelivered Bucket = "delivered"
	BucketCancelled Bucket = "cancelled"
)

// BucketOf maps a status onto its customer-facing bucket.
func BucketOf(s entity.OrderStatus) Bucket {
	switch s {
	case entity.StatusDelivered:
		return BucketDelivered
	case entity.StatusCancelled:
		return BucketCancelled
	default:
		return BucketActive
	}
}

// Summary aggregates a list of orders.
type Summary struct {
	Total      int
	ByStatus   map[entity.OrderStatus]int
	ByBucket   map[Bucket]int
	TotalSpent decimal.Decimal
}

// Summarize counts orders per status and bucket. TotalSpent only includes
// delivered orders.
func Summarize(orders []*entity.Order) Summary {
	sum := Summary{
		ByStatus:   make(map[entity.OrderStatus]int),
		ByBucket:   map[Bucket]int{BucketActive: 0, BucketDelivered: 0, BucketCancelled: 0},
		TotalSpent: decimal.Zero,
	}
	for _, o := range orders {
		if o == nil {
			continue
		}
		sum.Total++
		sum.ByStatus[o.Status]++
		b := BucketOf(o.Status)
		sum.ByBucket[b]++
		if b == BucketDelivered {
			sum.TotalSpent = sum.TotalSpent.Add(o.TotalAmount)
		}
	}
	return sum
}

// Filter returns the orders matching cond, newest first.
func Filter(orders []*entity.Order, cond Condition) []*entity.Order {
	out := make([]*entity.Order, 0, len(orders))
	for _, o := range orders {
		if cond.Matches(o) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedDate.After(out[j].CreatedDate)
	})
	return out
}
