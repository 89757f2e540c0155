package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Baaaki/car-rental/internal/booking"
	"github.com/Baaaki/car-rental/internal/cache"
	"github.com/Baaaki/car-rental/internal/journal"
	"github.com/Baaaki/car-rental/internal/metrics"
	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/policy"
	"github.com/Baaaki/car-rental/internal/repository"
	"github.com/Baaaki/car-rental/pkg/logger"
	"go.uber.org/zap"
)

// dateLayouts are tried in order when parsing pickup and return dates.
// Layouts without a zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

type CreateRentalInput struct {
	CarID      uint
	PickupDate string
	ReturnDate string
}

// UpdateRentalInput is the body of the generic rental update. A status, when
// present, takes precedence and the payment status is ignored.
type UpdateRentalInput struct {
	RentalStatus  *string
	PaymentStatus *string
}

type RentalService struct {
	store   *repository.Store
	clock   Clock
	journal journal.Recorder
	popular cache.PopularCache
}

func NewRentalService(store *repository.Store, clock Clock, rec journal.Recorder, popular cache.PopularCache) *RentalService {
	return &RentalService{
		store:   store,
		clock:   clock,
		journal: rec,
		popular: popular,
	}
}

// Create books a car for the actor. The request stays pending; overlapping
// pending requests are allowed and resolved at approval time.
func (s *RentalService) Create(ctx context.Context, actor Actor, in CreateRentalInput) (*models.Rental, error) {
	if err := actor.require(policy.ActionRentalCreate, true); err != nil {
		return nil, err
	}

	pickup, ret, err := s.validateCreate(in)
	if err != nil {
		metrics.RentalsCreatedTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	requested := booking.Interval{Start: pickup, End: ret}

	var rental *models.Rental
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		car, err := tx.Cars.GetForUpdate(ctx, in.CarID)
		if err != nil {
			return fmt.Errorf("lock car: %w", err)
		}
		if car == nil {
			return NewValidationError("car_id", "The selected car id is invalid.")
		}
		if car.Status == models.CarMaintenance {
			return fmt.Errorf("%w: car is under maintenance", ErrConflict)
		}

		holding, err := tx.Rentals.ForCar(ctx, car.ID, models.HoldingStatuses)
		if err != nil {
			return fmt.Errorf("load rentals: %w", err)
		}
		if clash := booking.Overlapping(requested, holding, 0); len(clash) > 0 {
			logger.Log.Info("Booking rejected: car already taken",
				zap.Uint("car_id", car.ID),
				zap.Uint("conflicting_rental_id", clash[0].ID),
			)
			return fmt.Errorf("%w: car is not available for selected dates", ErrConflict)
		}

		rental = &models.Rental{
			UserID:        actor.ID,
			CarID:         car.ID,
			PickupDate:    pickup,
			ReturnDate:    ret,
			TotalPrice:    booking.Price(car.DailyRate, pickup, ret),
			PaymentStatus: models.PaymentUnpaid,
			RentalStatus:  models.RentalPending,
		}
		if err := tx.Rentals.Create(ctx, rental); err != nil {
			return fmt.Errorf("create rental: %w", err)
		}
		rental.Car = car
		return nil
	})
	if err != nil {
		metrics.RentalsCreatedTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	metrics.RentalsCreatedTotal.WithLabelValues("created").Inc()
	s.record(journal.Entry{
		RentalID:  rental.ID,
		To:        string(models.RentalPending),
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Timestamp: s.clock.Now(),
	})
	logger.Log.Info("Rental created",
		zap.Uint("rental_id", rental.ID),
		zap.Uint("user_id", actor.ID),
		zap.Uint("car_id", rental.CarID),
		zap.String("total_price", rental.TotalPrice.StringFixed(2)),
	)
	return rental, nil
}

func (s *RentalService) validateCreate(in CreateRentalInput) (time.Time, time.Time, error) {
	v := &ValidationError{}
	if in.CarID == 0 {
		v.Add("car_id", "The car id field is required.")
	}

	pickup, pickupErr := parseDate(in.PickupDate)
	ret, returnErr := parseDate(in.ReturnDate)

	switch {
	case strings.TrimSpace(in.PickupDate) == "":
		v.Add("pickup_date", "The pickup date field is required.")
	case pickupErr != nil:
		v.Add("pickup_date", "The pickup date is not a valid date.")
	case !pickup.After(s.clock.Now()):
		v.Add("pickup_date", "The pickup date must be a date after now.")
	}

	switch {
	case strings.TrimSpace(in.ReturnDate) == "":
		v.Add("return_date", "The return date field is required.")
	case returnErr != nil:
		v.Add("return_date", "The return date is not a valid date.")
	case pickupErr == nil && !ret.After(pickup):
		v.Add("return_date", "The return date must be a date after pickup date.")
	}

	return pickup, ret, v.Err()
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// List returns rentals newest first. Actors without rental.list_all only see their own.
func (s *RentalService) List(ctx context.Context, actor Actor, f repository.RentalFilter) ([]models.Rental, error) {
	if !policy.Allowed(actor.Role, policy.ActionRentalListAll, false) {
		f.UserID = actor.ID
	}
	rentals, err := s.store.Rentals.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list rentals: %w", err)
	}
	return rentals, nil
}

// Update routes a generic update to a status transition or a payment change.
func (s *RentalService) Update(ctx context.Context, actor Actor, id uint, in UpdateRentalInput) (*models.Rental, error) {
	switch {
	case in.RentalStatus != nil:
		return s.UpdateStatus(ctx, actor, id, *in.RentalStatus)
	case in.PaymentStatus != nil:
		return s.UpdatePayment(ctx, actor, id, *in.PaymentStatus)
	}
	return nil, NewValidationError("rental_status", "Either rental_status or payment_status is required.")
}

// UpdateStatus executes one transition of the rental state machine.
func (s *RentalService) UpdateStatus(ctx context.Context, actor Actor, id uint, rawStatus string) (*models.Rental, error) {
	to, ok := models.ParseRentalStatus(rawStatus)
	if !ok {
		return nil, NewValidationError("rental_status", "The selected rental status is invalid.")
	}

	now := s.clock.Now()
	var (
		entries []journal.Entry
		rule    booking.Rule
		updated *models.Rental
	)

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		entries = entries[:0]

		rental, err := tx.Rentals.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load rental: %w", err)
		}
		if rental == nil {
			return fmt.Errorf("rental %w", ErrNotFound)
		}

		var found bool
		rule, found = booking.Lookup(rental.RentalStatus, to)
		if !found {
			return fmt.Errorf("%w: cannot move rental from %s to %s", ErrInvalidTransition, rental.RentalStatus, to)
		}
		if err := actor.require(rule.Action, rental.UserID == actor.ID); err != nil {
			return err
		}

		if _, err := tx.Cars.GetForUpdate(ctx, rental.CarID); err != nil {
			return fmt.Errorf("lock car: %w", err)
		}

		moved, err := tx.Rentals.Transition(ctx, rental.ID, rule.From, rule.To, actor.processor())
		if err != nil {
			return fmt.Errorf("update rental: %w", err)
		}
		if !moved {
			return fmt.Errorf("%w: rental is no longer %s", ErrInvalidTransition, rule.From)
		}
		entries = append(entries, journal.Entry{
			RentalID:  rental.ID,
			From:      string(rule.From),
			To:        string(rule.To),
			ActorID:   actor.ID,
			ActorRole: string(actor.Role),
			Timestamp: now,
		})

		denied, err := s.applyEffect(ctx, tx, rule.Effect, rental)
		if err != nil {
			return err
		}
		for _, d := range denied {
			entries = append(entries, journal.Entry{
				RentalID:  d,
				From:      string(models.RentalPending),
				To:        string(models.RentalDenied),
				Reason:    fmt.Sprintf("overlaps approved rental %d", rental.ID),
				Timestamp: now,
			})
		}

		updated, err = tx.Rentals.GetDetailed(ctx, rental.ID)
		return err
	})
	if err != nil {
		logger.Log.Warn("Rental transition rejected",
			zap.Uint("rental_id", id),
			zap.String("to", string(to)),
			zap.Uint("actor_id", actor.ID),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.RentalTransitionsTotal.WithLabelValues(string(rule.From), string(rule.To)).Inc()
	if auto := len(entries) - 1; auto > 0 {
		metrics.RentalsAutoDeniedTotal.Add(float64(auto))
	}
	s.record(entries...)
	s.invalidatePopular(ctx)

	logger.Log.Info("Rental status updated",
		zap.Uint("rental_id", id),
		zap.String("from", string(rule.From)),
		zap.String("to", string(rule.To)),
		zap.Uint("actor_id", actor.ID),
		zap.Int("auto_denied", len(entries)-1),
	)
	return updated, nil
}

// applyEffect performs the car side of a transition. It returns the ids of
// pending rentals denied by arbitration.
func (s *RentalService) applyEffect(ctx context.Context, tx *repository.Store, effect booking.Effect, rental *models.Rental) ([]uint, error) {
	switch effect {
	case booking.EffectApprove:
		return s.arbitrate(ctx, tx, rental)
	case booking.EffectCarRented:
		return nil, tx.Cars.SetStatus(ctx, rental.CarID, models.CarRented)
	case booking.EffectReleaseCar:
		return nil, releaseCar(ctx, tx, rental.CarID, rental.ID)
	case booking.EffectCarReturned:
		return nil, tx.Cars.SetStatus(ctx, rental.CarID, models.CarAvailable)
	}
	return nil, nil
}

// arbitrate runs after rental has been flipped to approved under the car
// lock. It refuses the approval if the car is already held for an
// overlapping window, then denies every overlapping pending request.
func (s *RentalService) arbitrate(ctx context.Context, tx *repository.Store, rental *models.Rental) ([]uint, error) {
	iv := booking.RentalInterval(rental)

	holding, err := tx.Rentals.ForCar(ctx, rental.CarID, models.HoldingStatuses)
	if err != nil {
		return nil, fmt.Errorf("load rentals: %w", err)
	}
	if clash := booking.Overlapping(iv, holding, rental.ID); len(clash) > 0 {
		return nil, fmt.Errorf("%w: car is already booked by rental %d for an overlapping period", ErrConflict, clash[0].ID)
	}

	pending, err := tx.Rentals.ForCar(ctx, rental.CarID, []models.RentalStatus{models.RentalPending})
	if err != nil {
		return nil, fmt.Errorf("load pending rentals: %w", err)
	}
	losers := booking.Overlapping(iv, pending, rental.ID)
	ids := make([]uint, 0, len(losers))
	for _, l := range losers {
		ids = append(ids, l.ID)
	}
	if _, err := tx.Rentals.DenyPending(ctx, ids, nil); err != nil {
		return nil, fmt.Errorf("deny overlapping rentals: %w", err)
	}

	if err := tx.Cars.SetStatus(ctx, rental.CarID, models.CarRented); err != nil {
		return nil, fmt.Errorf("mark car rented: %w", err)
	}
	return ids, nil
}

// releaseCar makes a rented car available again unless a rental other than
// excludeID still holds it.
func releaseCar(ctx context.Context, tx *repository.Store, carID, excludeID uint) error {
	holding, err := tx.Rentals.ForCar(ctx, carID, models.HoldingStatuses)
	if err != nil {
		return fmt.Errorf("load rentals: %w", err)
	}
	for _, r := range holding {
		if r.ID != excludeID {
			return nil
		}
	}

	car, err := tx.Cars.GetByID(ctx, carID)
	if err != nil || car == nil || car.Status != models.CarRented {
		return err
	}
	return tx.Cars.SetStatus(ctx, carID, models.CarAvailable)
}

// UpdatePayment sets the payment flag of a rental.
func (s *RentalService) UpdatePayment(ctx context.Context, actor Actor, id uint, raw string) (*models.Rental, error) {
	if err := actor.require(policy.ActionRentalUpdatePayment, false); err != nil {
		return nil, err
	}

	status := models.PaymentStatus(strings.ToLower(strings.TrimSpace(raw)))
	if status != models.PaymentPaid && status != models.PaymentUnpaid {
		return nil, NewValidationError("payment_status", "The selected payment status is invalid.")
	}

	rental, err := s.store.Rentals.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load rental: %w", err)
	}
	if rental == nil {
		return nil, fmt.Errorf("rental %w", ErrNotFound)
	}

	if err := s.store.Rentals.UpdatePayment(ctx, id, status, actor.processor()); err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}

	logger.Log.Info("Rental payment updated",
		zap.Uint("rental_id", id),
		zap.String("payment_status", string(status)),
		zap.Uint("actor_id", actor.ID),
	)
	return s.store.Rentals.GetDetailed(ctx, id)
}

// Delete removes a rental outright. A rental that was holding its car
// releases it.
func (s *RentalService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := actor.require(policy.ActionRentalDelete, false); err != nil {
		return err
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		rental, err := tx.Rentals.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load rental: %w", err)
		}
		if rental == nil {
			return fmt.Errorf("rental %w", ErrNotFound)
		}
		if _, err := tx.Cars.GetForUpdate(ctx, rental.CarID); err != nil {
			return fmt.Errorf("lock car: %w", err)
		}
		if err := tx.Rentals.Delete(ctx, rental.ID); err != nil {
			return fmt.Errorf("delete rental: %w", err)
		}
		return releaseCar(ctx, tx, rental.CarID, rental.ID)
	})
	if err != nil {
		return err
	}

	if err := s.journal.Prune([]uint{id}); err != nil {
		logger.Log.Warn("Failed to prune rental journal", zap.Uint("rental_id", id), zap.Error(err))
	}
	s.invalidatePopular(ctx)

	logger.Log.Info("Rental deleted", zap.Uint("rental_id", id), zap.Uint("actor_id", actor.ID))
	return nil
}

// History returns the journaled transitions of a rental, oldest first.
func (s *RentalService) History(ctx context.Context, actor Actor, id uint) ([]journal.Entry, error) {
	if err := actor.require(policy.ActionRentalHistory, false); err != nil {
		return nil, err
	}

	rental, err := s.store.Rentals.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load rental: %w", err)
	}
	if rental == nil {
		return nil, fmt.Errorf("rental %w", ErrNotFound)
	}

	entries, err := s.journal.ForRental(id)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return entries, nil
}

func (s *RentalService) record(entries ...journal.Entry) {
	if err := s.journal.Append(entries...); err != nil {
		logger.Log.Warn("Failed to journal rental transition", zap.Int("count", len(entries)), zap.Error(err))
	}
}

func (s *RentalService) invalidatePopular(ctx context.Context) {
	if err := s.popular.Invalidate(ctx); err != nil {
		logger.Log.Warn("Failed to invalidate popular cars cache", zap.Error(err))
	}
}
