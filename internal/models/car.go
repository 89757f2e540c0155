package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transmission string

const (
	TransmissionAutomatic Transmission = "automatic"
	TransmissionManual    Transmission = "manual"
)

type FuelType string

const (
	FuelGasoline FuelType = "gasoline"
	FuelDiesel   FuelType = "diesel"
	FuelElectric FuelType = "electric"
)

type CarStatus string

const (
	CarAvailable   CarStatus = "available"
	CarRented      CarStatus = "rented"
	CarMaintenance CarStatus = "maintenance"
)

type Car struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Make         string          `gorm:"type:varchar(50);not null" json:"make"`
	Model        string          `gorm:"type:varchar(50);not null" json:"model"`
	Year         int             `gorm:"not null" json:"year"`
	LicensePlate string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"license_plate"`
	Category     string          `gorm:"type:varchar(50);not null" json:"category"`
	Transmission Transmission    `gorm:"type:varchar(20);not null" json:"transmission"`
	FuelType     FuelType        `gorm:"type:varchar(20);not null" json:"fuel_type"`
	SeatCapacity int             `json:"seat_capacity"`
	DailyRate    decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"daily_rate"`
	ImageURL     *string         `gorm:"type:varchar(255)" json:"image_url"`
	Status       CarStatus       `gorm:"type:varchar(20);not null;default:'available';index" json:"status"`
	CreatedAt    time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PopularCar is a car annotated with the number of rentals counted towards its popularity.
type PopularCar struct {
	Car
	RentalCount int64 `json:"rental_count"`
}
