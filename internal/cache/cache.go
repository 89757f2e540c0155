// Package cache keeps derived read models in Redis. Every operation is best
// effort: callers log failures and fall back to the database.
package cache

import (
	"context"

	"github.com/Baaaki/car-rental/internal/models"
)

// PopularCache caches the popular car ranking per requested limit.
//
// Get reports the generation it read at. A ranking computed after a miss is
// stored with Set under that generation, so a write that raced an Invalidate
// is never served.
type PopularCache interface {
	Get(ctx context.Context, limit int) (cars []models.PopularCar, gen int64, ok bool, err error)
	Set(ctx context.Context, gen int64, limit int, cars []models.PopularCar) error
	Invalidate(ctx context.Context) error
}

// Nop is used when Redis is not configured.
type Nop struct{}

func (Nop) Get(context.Context, int) ([]models.PopularCar, int64, bool, error) {
	return nil, 0, false, nil
}
func (Nop) Set(context.Context, int64, int, []models.PopularCar) error { return nil }
func (Nop) Invalidate(context.Context) error                           { return nil }
