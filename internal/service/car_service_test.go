package service_test

import (
	"context"
	"testing"

	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/service"
	"github.com/Baaaki/car-rental/internal/testutil"
	"github.com/Baaaki/car-rental/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CarServiceTestSuite struct {
	suite.Suite
	h        *harness
	ctx      context.Context
	staff    service.Actor
	customer *models.User
}

func (s *CarServiceTestSuite) SetupSuite() {
	logger.Init(false)
}

func (s *CarServiceTestSuite) SetupTest() {
	s.h = newHarness(s.T())
	s.ctx = context.Background()
	s.staff = service.ActorOf(testutil.CreateTestUser(s.T(), s.h.db.DB, "sam", "secret123", models.RoleStaff))
	s.customer = testutil.CreateTestUser(s.T(), s.h.db.DB, "alice", "secret123", models.RoleCustomer)
}

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }

func newCarInput(plate string) service.CarInput {
	rate := decimal.RequireFromString("75.00")
	return service.CarInput{
		Make:         strPtr("Honda"),
		Model:        strPtr("CR-V"),
		Year:         intPtr(2023),
		LicensePlate: strPtr(plate),
		Category:     strPtr("SUV"),
		Transmission: strPtr("Automatic"),
		FuelType:     strPtr("gasoline"),
		SeatCapacity: intPtr(5),
		DailyRate:    &rate,
	}
}

func (s *CarServiceTestSuite) TestCreate() {
	car, err := s.h.cars.Create(s.ctx, s.staff, newCarInput("XYZ-789"))
	require.NoError(s.T(), err)
	assert.NotZero(s.T(), car.ID)
	assert.Equal(s.T(), models.CarAvailable, car.Status)
	assert.Equal(s.T(), models.TransmissionAutomatic, car.Transmission)
	assert.Equal(s.T(), "75.00", car.DailyRate.StringFixed(2))

	_, err = s.h.cars.Create(s.ctx, s.staff, newCarInput("XYZ-789"))
	assert.ErrorIs(s.T(), err, service.ErrConflict)

	// Plates are case-sensitive
	_, err = s.h.cars.Create(s.ctx, s.staff, newCarInput("xyz-789"))
	assert.NoError(s.T(), err)

	_, err = s.h.cars.Create(s.ctx, service.ActorOf(s.customer), newCarInput("NEW-1"))
	assert.ErrorIs(s.T(), err, service.ErrForbidden)
}

func (s *CarServiceTestSuite) TestCreate_Validation() {
	in := newCarInput("BAD-1")
	in.Transmission = strPtr("hover")
	in.FuelType = strPtr("coal")
	in.Year = intPtr(1800)
	zero := decimal.Zero
	in.DailyRate = &zero
	in.Make = nil

	_, err := s.h.cars.Create(s.ctx, s.staff, in)
	var ve *service.ValidationError
	require.ErrorAs(s.T(), err, &ve)
	for _, f := range []string{"transmission", "fuel_type", "year", "daily_rate", "make"} {
		assert.Contains(s.T(), ve.Fields, f)
	}
}

func (s *CarServiceTestSuite) TestUpdate_Partial() {
	car := testutil.CreateTestCar(s.T(), s.h.db.DB, "ABC-123", "50.00")
	testutil.CreateTestCar(s.T(), s.h.db.DB, "DEF-456", "60.00")

	rate := decimal.RequireFromString("55.5")
	got, err := s.h.cars.Update(s.ctx, s.staff, car.ID, service.CarInput{DailyRate: &rate, Status: strPtr("maintenance")})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "55.50", got.DailyRate.StringFixed(2))
	assert.Equal(s.T(), models.CarMaintenance, got.Status)
	assert.Equal(s.T(), "Toyota", got.Make)

	_, err = s.h.cars.Update(s.ctx, s.staff, car.ID, service.CarInput{LicensePlate: strPtr("DEF-456")})
	assert.ErrorIs(s.T(), err, service.ErrConflict)

	// Keeping its own plate is fine
	_, err = s.h.cars.Update(s.ctx, s.staff, car.ID, service.CarInput{LicensePlate: strPtr("ABC-123")})
	assert.NoError(s.T(), err)

	_, err = s.h.cars.Update(s.ctx, s.staff, 9999, service.CarInput{Make: strPtr("Kia")})
	assert.ErrorIs(s.T(), err, service.ErrNotFound)
}

func (s *CarServiceTestSuite) TestList_DefaultsToAvailable() {
	db := s.h.db.DB
	testutil.CreateTestCar(s.T(), db, "A-1", "50.00")
	busy := testutil.CreateTestCar(s.T(), db, "A-2", "50.00")
	require.NoError(s.T(), s.h.store.Cars.SetStatus(s.ctx, busy.ID, models.CarRented))

	cars, err := s.h.cars.List(s.ctx, service.CarListQuery{})
	require.NoError(s.T(), err)
	assert.Len(s.T(), cars, 1)

	cars, err = s.h.cars.List(s.ctx, service.CarListQuery{All: true})
	require.NoError(s.T(), err)
	assert.Len(s.T(), cars, 2)

	cars, err = s.h.cars.List(s.ctx, service.CarListQuery{Status: "rented"})
	require.NoError(s.T(), err)
	require.Len(s.T(), cars, 1)
	assert.Equal(s.T(), busy.ID, cars[0].ID)

	cars, err = s.h.cars.List(s.ctx, service.CarListQuery{All: true, Search: "camr"})
	require.NoError(s.T(), err)
	assert.Len(s.T(), cars, 2)

	cars, err = s.h.cars.List(s.ctx, service.CarListQuery{All: true, FuelType: "diesel"})
	require.NoError(s.T(), err)
	assert.Empty(s.T(), cars)
}

func (s *CarServiceTestSuite) TestDelete() {
	db := s.h.db.DB
	car := testutil.CreateTestCar(s.T(), db, "ABC-123", "50.00")
	open := testutil.CreateTestRental(s.T(), db, s.customer, car, epoch.AddDate(0, 0, 1), epoch.AddDate(0, 0, 2), models.RentalPending)
	testutil.CreateTestRental(s.T(), db, s.customer, car, epoch.AddDate(0, 0, -5), epoch.AddDate(0, 0, -3), models.RentalCompleted)

	assert.ErrorIs(s.T(), s.h.cars.Delete(s.ctx, s.staff, car.ID), service.ErrConflict)

	require.NoError(s.T(), db.Model(&models.Rental{}).Where("id = ?", open.ID).Update("rental_status", models.RentalCancelled).Error)
	require.NoError(s.T(), s.h.cars.Delete(s.ctx, s.staff, car.ID))

	var n int64
	db.Model(&models.Rental{}).Count(&n)
	assert.Zero(s.T(), n, "historical rentals go with the car")

	_, err := s.h.cars.Get(s.ctx, car.ID)
	assert.ErrorIs(s.T(), err, service.ErrNotFound)
}

func (s *CarServiceTestSuite) TestPopular_RanksThenPads() {
	db := s.h.db.DB
	a := testutil.CreateTestCar(s.T(), db, "A-1", "50.00")
	b := testutil.CreateTestCar(s.T(), db, "B-1", "50.00")
	c := testutil.CreateTestCar(s.T(), db, "C-1", "50.00")
	d := testutil.CreateTestCar(s.T(), db, "D-1", "50.00")

	past := epoch.AddDate(0, 0, -10)
	testutil.CreateTestRental(s.T(), db, s.customer, b, past, past.AddDate(0, 0, 1), models.RentalCompleted)
	testutil.CreateTestRental(s.T(), db, s.customer, b, past, past.AddDate(0, 0, 1), models.RentalReturned)
	testutil.CreateTestRental(s.T(), db, s.customer, a, past, past.AddDate(0, 0, 1), models.RentalApproved)
	// Not counted
	testutil.CreateTestRental(s.T(), db, s.customer, c, past, past.AddDate(0, 0, 1), models.RentalDenied)
	testutil.CreateTestRental(s.T(), db, s.customer, c, past, past.AddDate(0, 0, 1), models.RentalPending)

	got, err := s.h.cars.Popular(s.ctx, 3)
	require.NoError(s.T(), err)
	require.Len(s.T(), got, 3)
	assert.Equal(s.T(), b.ID, got[0].ID)
	assert.Equal(s.T(), int64(2), got[0].RentalCount)
	assert.Equal(s.T(), a.ID, got[1].ID)
	assert.Equal(s.T(), int64(1), got[1].RentalCount)
	// Padding: newest available car first
	assert.Equal(s.T(), d.ID, got[2].ID)
	assert.Zero(s.T(), got[2].RentalCount)

	all, err := s.h.cars.Popular(s.ctx, 0)
	require.NoError(s.T(), err)
	assert.Len(s.T(), all, service.DefaultPopularLimit)
}

func (s *CarServiceTestSuite) TestPopular_CachedUntilWrite() {
	db := s.h.db.DB
	testutil.CreateTestCar(s.T(), db, "A-1", "50.00")

	first, err := s.h.cars.Popular(s.ctx, 5)
	require.NoError(s.T(), err)
	require.Len(s.T(), first, 1)
	assert.True(s.T(), s.h.redis.Server.Exists("cars:popular:0:5"))

	// Inserted behind the service's back: still served from cache
	testutil.CreateTestCar(s.T(), db, "B-1", "50.00")
	cached, err := s.h.cars.Popular(s.ctx, 5)
	require.NoError(s.T(), err)
	assert.Len(s.T(), cached, 1)

	_, err = s.h.cars.Create(s.ctx, s.staff, newCarInput("C-1"))
	require.NoError(s.T(), err)
	gen, err := s.h.redis.Server.Get("cars:popular:gen")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "1", gen)

	fresh, err := s.h.cars.Popular(s.ctx, 5)
	require.NoError(s.T(), err)
	assert.Len(s.T(), fresh, 3)
}

func TestCarServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CarServiceTestSuite))
}
