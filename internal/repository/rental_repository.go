package repository

import (
	"context"
	"strings"

	"github.com/Baaaki/car-rental/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RentalRepository struct {
	db *gorm.DB
}

func NewRentalRepository(db *gorm.DB) *RentalRepository {
	return &RentalRepository{db: db}
}

// RentalFilter narrows a rental listing. Zero values do not filter.
type RentalFilter struct {
	UserID uint
	Status models.RentalStatus
	Search string
}

func (r *RentalRepository) Create(ctx context.Context, rental *models.Rental) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(rental).Error
}

// GetByID returns nil, nil when the rental does not exist.
func (r *RentalRepository) GetByID(ctx context.Context, id uint) (*models.Rental, error) {
	var rental models.Rental
	if err := r.db.WithContext(ctx).First(&rental, id).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &rental, nil
}

// GetDetailed loads the rental together with its user, car and processor.
func (r *RentalRepository) GetDetailed(ctx context.Context, id uint) (*models.Rental, error) {
	var rental models.Rental
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Car").
		Preload("ProcessedByUser").
		First(&rental, id).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &rental, nil
}

// List returns rentals newest first with associations preloaded.
func (r *RentalRepository) List(ctx context.Context, f RentalFilter) ([]models.Rental, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Rental{}).
		Select("rentals.*").
		Preload("User").
		Preload("Car").
		Preload("ProcessedByUser")

	if f.UserID != 0 {
		q = q.Where("rentals.user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("rentals.rental_status = ?", f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Joins("JOIN users ON users.id = rentals.user_id").
			Joins("JOIN cars ON cars.id = rentals.car_id").
			Where("LOWER(users.username) LIKE ? OR LOWER(users.full_name) LIKE ? OR LOWER(cars.make) LIKE ? OR LOWER(cars.model) LIKE ?",
				like, like, like, like)
	}

	var rentals []models.Rental
	err := q.Order("rentals.created_at DESC").Order("rentals.id DESC").Find(&rentals).Error
	return rentals, err
}

// ForCar lists the car's rentals whose status is one of statuses.
func (r *RentalRepository) ForCar(ctx context.Context, carID uint, statuses []models.RentalStatus) ([]models.Rental, error) {
	var rentals []models.Rental
	err := r.db.WithContext(ctx).
		Where("car_id = ? AND rental_status IN ?", carID, statuses).
		Order("id").
		Find(&rentals).Error
	return rentals, err
}

// CountOpenForCar counts rentals of the car that have not reached a terminal status.
func (r *RentalRepository) CountOpenForCar(ctx context.Context, carID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Rental{}).
		Where("car_id = ? AND rental_status NOT IN ?", carID,
			[]models.RentalStatus{models.RentalDenied, models.RentalCancelled, models.RentalCompleted}).
		Count(&n).Error
	return n, err
}

// Transition moves the rental from one status to another only if it is still
// in from. It reports false when another writer got there first.
func (r *RentalRepository) Transition(ctx context.Context, id uint, from, to models.RentalStatus, processedBy *uint) (bool, error) {
	fields := map[string]interface{}{"rental_status": to}
	if processedBy != nil {
		fields["processed_by"] = *processedBy
	}

	res := r.db.WithContext(ctx).Model(&models.Rental{}).
		Where("id = ? AND rental_status = ?", id, from).
		Updates(fields)
	return res.RowsAffected == 1, res.Error
}

// DenyPending denies the listed rentals that are still pending and returns how many changed.
func (r *RentalRepository) DenyPending(ctx context.Context, ids []uint, processedBy *uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	fields := map[string]interface{}{"rental_status": models.RentalDenied}
	if processedBy != nil {
		fields["processed_by"] = *processedBy
	}

	res := r.db.WithContext(ctx).Model(&models.Rental{}).
		Where("id IN ? AND rental_status = ?", ids, models.RentalPending).
		Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *RentalRepository) UpdatePayment(ctx context.Context, id uint, status models.PaymentStatus, processedBy *uint) error {
	fields := map[string]interface{}{"payment_status": status}
	if processedBy != nil {
		fields["processed_by"] = *processedBy
	}
	return r.db.WithContext(ctx).Model(&models.Rental{}).Where("id = ?", id).Updates(fields).Error
}

func (r *RentalRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Rental{}, id).Error
}

func (r *RentalRepository) DeleteByUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Rental{}).Error
}

func (r *RentalRepository) DeleteByCar(ctx context.Context, carID uint) error {
	return r.db.WithContext(ctx).Where("car_id = ?", carID).Delete(&models.Rental{}).Error
}

// ClearProcessor nulls processed_by on every rental the user processed.
func (r *RentalRepository) ClearProcessor(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Model(&models.Rental{}).
		Where("processed_by = ?", userID).
		Update("processed_by", nil).Error
}
