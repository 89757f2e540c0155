package repository

import (
	"context"
	"strings"

	"github.com/Baaaki/car-rental/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CarRepository struct {
	db *gorm.DB
}

func NewCarRepository(db *gorm.DB) *CarRepository {
	return &CarRepository{db: db}
}

// CarFilter narrows a car listing. An empty Status lists every status.
type CarFilter struct {
	Status       models.CarStatus
	Transmission models.Transmission
	FuelType     models.FuelType
	Search       string
}

func (r *CarRepository) Create(ctx context.Context, car *models.Car) error {
	return duplicateKey(r.db.WithContext(ctx).Create(car).Error)
}

// GetByID returns nil, nil when the car does not exist.
func (r *CarRepository) GetByID(ctx context.Context, id uint) (*models.Car, error) {
	var car models.Car
	if err := r.db.WithContext(ctx).First(&car, id).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &car, nil
}

// GetForUpdate loads the car holding a row lock until the surrounding
// transaction ends. Every booking write for a car goes through this lock.
func (r *CarRepository) GetForUpdate(ctx context.Context, id uint) (*models.Car, error) {
	var car models.Car
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&car, id).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &car, nil
}

// GetByPlate matches the license plate exactly, case included.
func (r *CarRepository) GetByPlate(ctx context.Context, plate string) (*models.Car, error) {
	var car models.Car
	if err := r.db.WithContext(ctx).Where("license_plate = ?", plate).First(&car).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &car, nil
}

func (r *CarRepository) List(ctx context.Context, f CarFilter) ([]models.Car, error) {
	q := r.db.WithContext(ctx).Model(&models.Car{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Transmission != "" {
		q = q.Where("transmission = ?", f.Transmission)
	}
	if f.FuelType != "" {
		q = q.Where("fuel_type = ?", f.FuelType)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(make) LIKE ? OR LOWER(model) LIKE ? OR LOWER(category) LIKE ?", like, like, like)
	}

	var cars []models.Car
	err := q.Order("created_at DESC").Order("id DESC").Find(&cars).Error
	return cars, err
}

func (r *CarRepository) Update(ctx context.Context, car *models.Car, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(car).Updates(fields).Error; err != nil {
		return duplicateKey(err)
	}
	return r.db.WithContext(ctx).First(car, car.ID).Error
}

func (r *CarRepository) SetStatus(ctx context.Context, id uint, status models.CarStatus) error {
	return r.db.WithContext(ctx).Model(&models.Car{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *CarRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Car{}, id).Error
}

// MostRented ranks cars that have at least one rental in statuses by that
// count, newest car first on ties.
func (r *CarRepository) MostRented(ctx context.Context, statuses []models.RentalStatus, limit int) ([]models.PopularCar, error) {
	var out []models.PopularCar
	err := r.db.WithContext(ctx).
		Model(&models.Car{}).
		Select("cars.*, COUNT(rentals.id) AS rental_count").
		Joins("JOIN rentals ON rentals.car_id = cars.id AND rentals.rental_status IN ?", statuses).
		Group("cars.id").
		Order("rental_count DESC").
		Order("cars.created_at DESC").
		Order("cars.id DESC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// AvailableExcept lists available cars not in exclude, newest first.
func (r *CarRepository) AvailableExcept(ctx context.Context, exclude []uint, limit int) ([]models.Car, error) {
	q := r.db.WithContext(ctx).Where("status = ?", models.CarAvailable)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}

	var cars []models.Car
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&cars).Error
	return cars, err
}
