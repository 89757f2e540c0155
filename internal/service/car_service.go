package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Baaaki/car-rental/internal/cache"
	"github.com/Baaaki/car-rental/internal/metrics"
	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/policy"
	"github.com/Baaaki/car-rental/internal/repository"
	"github.com/Baaaki/car-rental/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultPopularLimit = 3
	MaxPopularLimit     = 50
)

// CarInput carries a full car on create and a partial one on update.
// Nil fields are left untouched.
type CarInput struct {
	Make         *string
	Model        *string
	Year         *int
	LicensePlate *string
	Category     *string
	Transmission *string
	FuelType     *string
	SeatCapacity *int
	DailyRate    *decimal.Decimal
	ImageURL     *string
	Status       *string
}

// CarListQuery is the public car listing filter. Without Status or All only
// available cars are listed.
type CarListQuery struct {
	Status       string
	All          bool
	Transmission string
	FuelType     string
	Search       string
}

type CarService struct {
	store   *repository.Store
	popular cache.PopularCache
}

func NewCarService(store *repository.Store, popular cache.PopularCache) *CarService {
	return &CarService{store: store, popular: popular}
}

func (s *CarService) List(ctx context.Context, q CarListQuery) ([]models.Car, error) {
	f := repository.CarFilter{
		Transmission: models.Transmission(strings.ToLower(q.Transmission)),
		FuelType:     models.FuelType(strings.ToLower(q.FuelType)),
		Search:       q.Search,
	}
	switch {
	case q.Status != "":
		f.Status = models.CarStatus(strings.ToLower(q.Status))
	case !q.All:
		f.Status = models.CarAvailable
	}

	cars, err := s.store.Cars.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}
	return cars, nil
}

func (s *CarService) Get(ctx context.Context, id uint) (*models.Car, error) {
	car, err := s.store.Cars.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load car: %w", err)
	}
	if car == nil {
		return nil, fmt.Errorf("car %w", ErrNotFound)
	}
	return car, nil
}

func (s *CarService) Create(ctx context.Context, actor Actor, in CarInput) (*models.Car, error) {
	if err := actor.require(policy.ActionCarCreate, false); err != nil {
		return nil, err
	}

	fields, err := validateCarInput(in, true)
	if err != nil {
		return nil, err
	}

	car := &models.Car{
		Make:         *in.Make,
		Model:        *in.Model,
		Year:         *in.Year,
		LicensePlate: strings.TrimSpace(*in.LicensePlate),
		Category:     *in.Category,
		Transmission: fields["transmission"].(models.Transmission),
		FuelType:     fields["fuel_type"].(models.FuelType),
		DailyRate:    in.DailyRate.Round(2),
		ImageURL:     in.ImageURL,
		Status:       models.CarAvailable,
	}
	if in.SeatCapacity != nil {
		car.SeatCapacity = *in.SeatCapacity
	}
	if st, ok := fields["status"]; ok {
		car.Status = st.(models.CarStatus)
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := ensurePlateFree(ctx, tx, 0, car.LicensePlate); err != nil {
			return err
		}
		return conflictOnDuplicate(tx.Cars.Create(ctx, car), takenPlate)
	})
	if err != nil {
		return nil, err
	}

	s.invalidatePopular(ctx)
	logger.Log.Info("Car created",
		zap.Uint("car_id", car.ID),
		zap.String("license_plate", car.LicensePlate),
		zap.Uint("actor_id", actor.ID),
	)
	return car, nil
}

func (s *CarService) Update(ctx context.Context, actor Actor, id uint, in CarInput) (*models.Car, error) {
	if err := actor.require(policy.ActionCarUpdate, false); err != nil {
		return nil, err
	}

	fields, err := validateCarInput(in, false)
	if err != nil {
		return nil, err
	}

	var car *models.Car
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		car, err = tx.Cars.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("load car: %w", err)
		}
		if car == nil {
			return fmt.Errorf("car %w", ErrNotFound)
		}
		if plate, ok := fields["license_plate"].(string); ok {
			if err := ensurePlateFree(ctx, tx, car.ID, plate); err != nil {
				return err
			}
		}
		return conflictOnDuplicate(tx.Cars.Update(ctx, car, fields), takenPlate)
	})
	if err != nil {
		return nil, err
	}

	s.invalidatePopular(ctx)
	logger.Log.Info("Car updated",
		zap.Uint("car_id", car.ID),
		zap.Int("fields", len(fields)),
		zap.Uint("actor_id", actor.ID),
	)
	return car, nil
}

// Delete removes a car with its rental history. Cars referenced by a rental
// that is still in progress cannot be deleted.
func (s *CarService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := actor.require(policy.ActionCarDelete, false); err != nil {
		return err
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		car, err := tx.Cars.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("load car: %w", err)
		}
		if car == nil {
			return fmt.Errorf("car %w", ErrNotFound)
		}

		open, err := tx.Rentals.CountOpenForCar(ctx, id)
		if err != nil {
			return fmt.Errorf("count rentals: %w", err)
		}
		if open > 0 {
			return fmt.Errorf("%w: car has %d rentals in progress", ErrConflict, open)
		}

		if err := tx.Rentals.DeleteByCar(ctx, id); err != nil {
			return fmt.Errorf("delete rentals: %w", err)
		}
		return tx.Cars.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.invalidatePopular(ctx)
	logger.Log.Info("Car deleted", zap.Uint("car_id", id), zap.Uint("actor_id", actor.ID))
	return nil
}

// Popular ranks cars by how often they were rented and pads the ranking with
// available cars so that up to limit cars are returned.
func (s *CarService) Popular(ctx context.Context, limit int) ([]models.PopularCar, error) {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	if limit > MaxPopularLimit {
		limit = MaxPopularLimit
	}

	cached, gen, ok, err := s.popular.Get(ctx, limit)
	cacheable := err == nil
	switch {
	case err != nil:
		metrics.PopularCacheTotal.WithLabelValues("error").Inc()
		logger.Log.Warn("Popular cars cache read failed", zap.Error(err))
	case ok:
		metrics.PopularCacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		metrics.PopularCacheTotal.WithLabelValues("miss").Inc()
	}

	start := time.Now()
	ranked, err := s.store.Cars.MostRented(ctx, models.PopularityStatuses, limit)
	if err != nil {
		return nil, fmt.Errorf("rank cars: %w", err)
	}

	if missing := limit - len(ranked); missing > 0 {
		seen := make([]uint, 0, len(ranked))
		for _, c := range ranked {
			seen = append(seen, c.ID)
		}
		fill, err := s.store.Cars.AvailableExcept(ctx, seen, missing)
		if err != nil {
			return nil, fmt.Errorf("load available cars: %w", err)
		}
		for _, c := range fill {
			ranked = append(ranked, models.PopularCar{Car: c})
		}
	}
	if ranked == nil {
		ranked = []models.PopularCar{}
	}

	if cacheable {
		if err := s.popular.Set(ctx, gen, limit, ranked); err != nil {
			logger.Log.Warn("Popular cars cache write failed", zap.Error(err))
		}
	}

	logger.Log.Debug("Popular cars computed",
		zap.Int("limit", limit),
		zap.Int("count", len(ranked)),
		zap.Duration("duration", time.Since(start)),
	)
	return ranked, nil
}

func (s *CarService) invalidatePopular(ctx context.Context) {
	if err := s.popular.Invalidate(ctx); err != nil {
		logger.Log.Warn("Failed to invalidate popular cars cache", zap.Error(err))
	}
}

const takenPlate = "license plate has already been taken"

func ensurePlateFree(ctx context.Context, st *repository.Store, selfID uint, plate string) error {
	other, err := st.Cars.GetByPlate(ctx, plate)
	if err != nil {
		return fmt.Errorf("lookup plate: %w", err)
	}
	if other != nil && other.ID != selfID {
		return fmt.Errorf("%w: %s", ErrConflict, takenPlate)
	}
	return nil
}

// validateCarInput checks every present field and returns the column updates
// they translate to. On create the core fields are required.
func validateCarInput(in CarInput, create bool) (map[string]interface{}, error) {
	v := &ValidationError{}
	fields := map[string]interface{}{}

	text := func(name, column string, val *string, max int) {
		if val == nil {
			if create {
				v.Add(name, fmt.Sprintf("The %s field is required.", strings.ReplaceAll(name, "_", " ")))
			}
			return
		}
		t := strings.TrimSpace(*val)
		switch {
		case t == "":
			v.Add(name, fmt.Sprintf("The %s field is required.", strings.ReplaceAll(name, "_", " ")))
		case len(t) > max:
			v.Add(name, fmt.Sprintf("The %s may not be greater than %d characters.", strings.ReplaceAll(name, "_", " "), max))
		default:
			*val = t
			fields[column] = t
		}
	}
	text("make", "make", in.Make, 50)
	text("model", "model", in.Model, 50)
	text("license_plate", "license_plate", in.LicensePlate, 20)
	text("category", "category", in.Category, 50)

	maxYear := time.Now().Year() + 1
	switch {
	case in.Year == nil:
		if create {
			v.Add("year", "The year field is required.")
		}
	case *in.Year < 1900 || *in.Year > maxYear:
		v.Add("year", fmt.Sprintf("The year must be between 1900 and %d.", maxYear))
	default:
		fields["year"] = *in.Year
	}

	switch {
	case in.Transmission == nil:
		if create {
			v.Add("transmission", "The transmission field is required.")
		}
	default:
		t := models.Transmission(strings.ToLower(strings.TrimSpace(*in.Transmission)))
		if t != models.TransmissionAutomatic && t != models.TransmissionManual {
			v.Add("transmission", "The selected transmission is invalid.")
		} else {
			fields["transmission"] = t
		}
	}

	switch {
	case in.FuelType == nil:
		if create {
			v.Add("fuel_type", "The fuel type field is required.")
		}
	default:
		f := models.FuelType(strings.ToLower(strings.TrimSpace(*in.FuelType)))
		if f != models.FuelGasoline && f != models.FuelDiesel && f != models.FuelElectric {
			v.Add("fuel_type", "The selected fuel type is invalid.")
		} else {
			fields["fuel_type"] = f
		}
	}

	if in.SeatCapacity != nil {
		if *in.SeatCapacity < 1 || *in.SeatCapacity > 50 {
			v.Add("seat_capacity", "The seat capacity must be between 1 and 50.")
		} else {
			fields["seat_capacity"] = *in.SeatCapacity
		}
	}

	switch {
	case in.DailyRate == nil:
		if create {
			v.Add("daily_rate", "The daily rate field is required.")
		}
	case !in.DailyRate.IsPositive():
		v.Add("daily_rate", "The daily rate must be greater than 0.")
	default:
		fields["daily_rate"] = in.DailyRate.Round(2)
	}

	if in.ImageURL != nil {
		if len(*in.ImageURL) > 255 {
			v.Add("image_url", "The image url may not be greater than 255 characters.")
		} else {
			fields["image_url"] = *in.ImageURL
		}
	}

	if in.Status != nil {
		st := models.CarStatus(strings.ToLower(strings.TrimSpace(*in.Status)))
		if st != models.CarAvailable && st != models.CarRented && st != models.CarMaintenance {
			v.Add("status", "The selected status is invalid.")
		} else {
			fields["status"] = st
		}
	}

	if err := v.Err(); err != nil {
		return nil, err
	}
	return fields, nil
}
