package testutil

import (
	"testing"
	"time"

	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Hasher is the cheap Argon2 configuration shared by tests.
var Hasher = utils.FastArgon2()

// CreateTestUser inserts a verified user with the given role and password.
func CreateTestUser(t *testing.T, db *gorm.DB, username, password string, role models.Role) *models.User {
	t.Helper()

	hash, err := Hasher.Hash(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Test " + username,
		PasswordHash: hash,
		Role:         role,
		IsVerified:   true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}

// CreateTestCar inserts an available automatic gasoline car.
func CreateTestCar(t *testing.T, db *gorm.DB, plate string, dailyRate string) *models.Car {
	t.Helper()

	car := &models.Car{
		Make:         "Toyota",
		Model:        "Camry",
		Year:         2023,
		LicensePlate: plate,
		Category:     "Sedan",
		Transmission: models.TransmissionAutomatic,
		FuelType:     models.FuelGasoline,
		SeatCapacity: 5,
		DailyRate:    decimal.RequireFromString(dailyRate),
		Status:       models.CarAvailable,
	}
	if err := db.Create(car).Error; err != nil {
		t.Fatalf("Failed to create car %s: %v", plate, err)
	}
	return car
}

// CreateTestRental inserts a rental directly, bypassing the booking rules.
func CreateTestRental(t *testing.T, db *gorm.DB, user *models.User, car *models.Car, pickup, ret time.Time, status models.RentalStatus) *models.Rental {
	t.Helper()

	rental := &models.Rental{
		UserID:        user.ID,
		CarID:         car.ID,
		PickupDate:    pickup,
		ReturnDate:    ret,
		TotalPrice:    car.DailyRate,
		PaymentStatus: models.PaymentUnpaid,
		RentalStatus:  status,
	}
	if err := db.Omit("User", "Car", "ProcessedByUser").Create(rental).Error; err != nil {
		t.Fatalf("Failed to create rental: %v", err)
	}
	return rental
}

// LatestOTP returns the newest unused code of the given type for the user.
func LatestOTP(t *testing.T, db *gorm.DB, userID uint, typ models.OtpType) *models.OtpCode {
	t.Helper()

	var otp models.OtpCode
	err := db.Where("user_id = ? AND type = ? AND is_used = ?", userID, typ, false).
		Order("id DESC").
		First(&otp).Error
	if err != nil {
		t.Fatalf("No unused %s OTP for user %d: %v", typ, userID, err)
	}
	return &otp
}

// ReloadRental fetches the current row of a rental.
func ReloadRental(t *testing.T, db *gorm.DB, id uint) *models.Rental {
	t.Helper()

	var r models.Rental
	if err := db.First(&r, id).Error; err != nil {
		t.Fatalf("Failed to reload rental %d: %v", id, err)
	}
	return &r
}

// ReloadCar fetches the current row of a car.
func ReloadCar(t *testing.T, db *gorm.DB, id uint) *models.Car {
	t.Helper()

	var c models.Car
	if err := db.First(&c, id).Error; err != nil {
		t.Fatalf("Failed to reload car %d: %v", id, err)
	}
	return &c
}
