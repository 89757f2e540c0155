// Package booking holds the pure rules of the rental lifecycle: interval
// overlap, pricing and the status transition table.
package booking

import (
	"time"

	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/policy"
	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// Interval is a closed [Start, End] time range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// RentalInterval returns the interval a rental occupies.
func RentalInterval(r *models.Rental) Interval {
	return Interval{Start: r.PickupDate, End: r.ReturnDate}
}

// Overlaps reports whether the two intervals share at least one instant.
// Bounds are inclusive: a rental returning at 10:00 overlaps one picked up at 10:00.
func (i Interval) Overlaps(o Interval) bool {
	return !i.Start.After(o.End) && !o.Start.After(i.End)
}

// Overlapping filters rentals whose interval intersects iv, skipping excludeID.
func Overlapping(iv Interval, rentals []models.Rental, excludeID uint) []models.Rental {
	var out []models.Rental
	for _, r := range rentals {
		if r.ID == excludeID {
			continue
		}
		if iv.Overlaps(RentalInterval(&r)) {
			out = append(out, r)
		}
	}
	return out
}

// BillableDays counts whole days between pickup and return, billing at least one.
func BillableDays(pickup, ret time.Time) int64 {
	days := int64(ret.Sub(pickup) / day)
	if days < 1 {
		return 1
	}
	return days
}

// Price computes the total charged for a rental of a car at dailyRate.
func Price(dailyRate decimal.Decimal, pickup, ret time.Time) decimal.Decimal {
	return dailyRate.Mul(decimal.NewFromInt(BillableDays(pickup, ret)))
}

// Effect is the side effect a transition has on shared state.
type Effect int

const (
	EffectNone Effect = iota
	// EffectApprove runs double-booking arbitration and marks the car rented.
	EffectApprove
	// EffectCarRented re-affirms the car as rented.
	EffectCarRented
	// EffectReleaseCar makes the car available unless another rental still holds it.
	EffectReleaseCar
	// EffectCarReturned marks the car available.
	EffectCarReturned
)

// Rule describes one allowed transition.
type Rule struct {
	From   models.RentalStatus
	To     models.RentalStatus
	Action policy.Action
	Effect Effect
}

var transitions = map[models.RentalStatus]map[models.RentalStatus]Rule{
	models.RentalPending: {
		models.RentalApproved:  {Action: policy.ActionRentalReview, Effect: EffectApprove},
		models.RentalDenied:    {Action: policy.ActionRentalReview},
		models.RentalCancelled: {Action: policy.ActionRentalCancel},
	},
	models.RentalApproved: {
		models.RentalRented:    {Action: policy.ActionRentalStart, Effect: EffectCarRented},
		models.RentalCancelled: {Action: policy.ActionRentalCancel, Effect: EffectReleaseCar},
	},
	models.RentalRented: {
		models.RentalPendingReturn: {Action: policy.ActionRentalRequestReturn},
	},
	models.RentalPendingReturn: {
		models.RentalReturned: {Action: policy.ActionRentalCheckIn, Effect: EffectCarReturned},
	},
	models.RentalReturned: {
		models.RentalCompleted: {Action: policy.ActionRentalComplete},
	},
}

// Lookup returns the rule for from -> to, or false when the transition is not allowed.
func Lookup(from, to models.RentalStatus) (Rule, bool) {
	r, ok := transitions[from][to]
	if !ok {
		return Rule{}, false
	}
	r.From, r.To = from, to
	return r, true
}

// Targets lists the statuses reachable from from in one step.
func Targets(from models.RentalStatus) []models.RentalStatus {
	out := make([]models.RentalStatus, 0, len(transitions[from]))
	for to := range transitions[from] {
		out = append(out, to)
	}
	return out
}
