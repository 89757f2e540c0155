package service_test

import (
	"context"
	"crypto/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/Baaaki/car-rental/internal/cache"
	"github.com/Baaaki/car-rental/internal/journal"
	"github.com/Baaaki/car-rental/internal/repository"
	"github.com/Baaaki/car-rental/internal/service"
	"github.com/Baaaki/car-rental/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const superAdminID = 6

// epoch is the fixed "now" every service test starts from.
var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// harness wires every service against a private SQLite database, a
// miniredis instance and a journal in a temp dir.
type harness struct {
	db      *testutil.TestDatabase
	redis   *testutil.TestRedis
	client  *redis.Client
	store   *repository.Store
	clock   *testutil.FakeClock
	sender  *testutil.RecordingSender
	journal *journal.Journal
	popular *cache.RedisPopularCache

	tokens  *service.TokenService
	otps    *service.OtpService
	auth    *service.AuthService
	rentals *service.RentalService
	cars    *service.CarService
	users   *service.UserService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		db:     testutil.SetupTestDatabase(t),
		redis:  testutil.SetupTestRedis(t),
		clock:  testutil.NewFakeClock(epoch),
		sender: &testutil.RecordingSender{},
	}

	client, err := cache.Connect(context.Background(), h.redis.URL)
	require.NoError(t, err)
	h.client = client

	j, err := journal.Open(filepath.Join(t.TempDir(), "rentals.journal"))
	require.NoError(t, err)
	h.journal = j

	h.store = repository.NewStore(h.db.DB)
	h.popular = cache.NewRedisPopularCache(client, 5*time.Minute)
	h.tokens = service.NewTokenService(h.store, h.clock, rand.Reader, 7*24*time.Hour)
	h.otps = service.NewOtpService(h.store, h.sender, h.clock, rand.Reader, 10*time.Minute)
	h.auth = service.NewAuthService(h.store, h.tokens, h.otps, testutil.Hasher)
	h.rentals = service.NewRentalService(h.store, h.clock, h.journal, h.popular)
	h.cars = service.NewCarService(h.store, h.popular)
	h.users = service.NewUserService(h.store, testutil.Hasher, h.journal, h.popular, superAdminID)

	t.Cleanup(func() {
		h.journal.Close()
		h.client.Close()
		h.redis.Teardown(t)
		h.db.Teardown(t)
	})
	return h
}

// day formats epoch shifted by n days and hour h as a request date.
func day(n, hour int) string {
	return epoch.AddDate(0, 0, n).Add(time.Duration(hour-epoch.Hour()) * time.Hour).Format("2006-01-02 15:04:05")
}
