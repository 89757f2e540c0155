package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Store groups the repositories that share one gorm handle. A Store bound to
// a transaction is handed to the callback of Transaction.
type Store struct {
	db *gorm.DB

	Users   *UserRepository
	Cars    *CarRepository
	Rentals *RentalRepository
	Otps    *OtpRepository
	Tokens  *TokenRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:      db,
		Users:   NewUserRepository(db),
		Cars:    NewCarRepository(db),
		Rentals: NewRentalRepository(db),
		Otps:    NewOtpRepository(db),
		Tokens:  NewTokenRepository(db),
	}
}

// Transaction runs fn inside a database transaction. Returning an error from
// fn rolls back every write made through tx.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(NewStore(db))
	})
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ErrDuplicate is returned when a write hits a unique index.
var ErrDuplicate = errors.New("duplicate key")

// duplicateKey maps the driver's unique violation to ErrDuplicate. The gorm
// handle must be opened with TranslateError.
func duplicateKey(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
