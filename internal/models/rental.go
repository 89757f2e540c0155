package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type RentalStatus string

const (
	RentalPending       RentalStatus = "pending"
	RentalApproved      RentalStatus = "approved"
	RentalDenied        RentalStatus = "denied"
	RentalCancelled     RentalStatus = "cancelled"
	RentalRented        RentalStatus = "rented"
	RentalPendingReturn RentalStatus = "pending_return"
	RentalReturned      RentalStatus = "returned"
	RentalCompleted     RentalStatus = "completed"
)

// ParseRentalStatus normalizes a client supplied status. "active" is an
// alias of rented and "Pending Return" of pending_return.
func ParseRentalStatus(s string) (RentalStatus, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, " ", "_")
	switch norm {
	case "active":
		return RentalRented, true
	case string(RentalPending), string(RentalApproved), string(RentalDenied), string(RentalCancelled),
		string(RentalRented), string(RentalPendingReturn), string(RentalReturned), string(RentalCompleted):
		return RentalStatus(norm), true
	}
	return "", false
}

// Terminal reports whether no transition leaves this status.
func (s RentalStatus) Terminal() bool {
	return s == RentalDenied || s == RentalCancelled || s == RentalCompleted
}

// HoldingStatuses are the statuses in which a rental blocks its car for its interval.
var HoldingStatuses = []RentalStatus{RentalApproved, RentalRented, RentalPendingReturn}

// PopularityStatuses are counted when ranking cars by popularity.
var PopularityStatuses = []RentalStatus{RentalCompleted, RentalApproved, RentalRented, RentalReturned}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

type Rental struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `gorm:"not null;index" json:"user_id"`
	CarID         uint            `gorm:"not null;index" json:"car_id"`
	PickupDate    time.Time       `gorm:"not null" json:"pickup_date"`
	ReturnDate    time.Time       `gorm:"not null" json:"return_date"`
	TotalPrice    decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total_price"`
	PaymentStatus PaymentStatus   `gorm:"type:varchar(20);not null;default:'unpaid'" json:"payment_status"`
	RentalStatus  RentalStatus    `gorm:"type:varchar(20);not null;default:'pending';index" json:"rental_status"`
	ProcessedBy   *uint           `json:"processed_by"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	User            *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Car             *Car  `gorm:"foreignKey:CarID;constraint:OnDelete:CASCADE" json:"car,omitempty"`
	ProcessedByUser *User `gorm:"foreignKey:ProcessedBy;constraint:OnDelete:SET NULL" json:"processed_by_user,omitempty"`
}
