package handler_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Baaaki/car-rental/internal/cache"
	"github.com/Baaaki/car-rental/internal/handler"
	"github.com/Baaaki/car-rental/internal/journal"
	"github.com/Baaaki/car-rental/internal/metrics"
	"github.com/Baaaki/car-rental/internal/middleware"
	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/repository"
	"github.com/Baaaki/car-rental/internal/router"
	"github.com/Baaaki/car-rental/internal/service"
	"github.com/Baaaki/car-rental/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const superAdminID = 6

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// api is a fully wired HTTP stack over SQLite, miniredis and a temp journal.
type api struct {
	t      *testing.T
	db     *gorm.DB
	clock  *testutil.FakeClock
	sender *testutil.RecordingSender
	router *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB := testutil.SetupTestDatabase(t)
	testRedis := testutil.SetupTestRedis(t)

	client, err := cache.Connect(context.Background(), testRedis.URL)
	require.NoError(t, err)

	j, err := journal.Open(filepath.Join(t.TempDir(), "rentals.journal"))
	require.NoError(t, err)

	t.Cleanup(func() {
		j.Close()
		client.Close()
		testRedis.Teardown(t)
		testDB.Teardown(t)
	})

	a := &api{
		t:      t,
		db:     testDB.DB,
		clock:  testutil.NewFakeClock(epoch),
		sender: &testutil.RecordingSender{},
	}

	store := repository.NewStore(testDB.DB)
	popular := cache.NewRedisPopularCache(client, time.Minute)
	tokens := service.NewTokenService(store, a.clock, rand.Reader, 24*time.Hour)
	otps := service.NewOtpService(store, a.sender, a.clock, rand.Reader, 10*time.Minute)

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg, "car-rental-test")

	a.router = router.New(router.Options{
		Auth:    handler.NewAuthHandler(service.NewAuthService(store, tokens, otps, testutil.Hasher)),
		Cars:    handler.NewCarHandler(service.NewCarService(store, popular)),
		Rentals: handler.NewRentalHandler(service.NewRentalService(store, a.clock, j, popular)),
		Users:   handler.NewUserHandler(service.NewUserService(store, testutil.Hasher, j, popular, superAdminID)),

		Authenticator: tokens,
		RateLimiter: middleware.NewRateLimiter(client, middleware.RateLimiterConfig{
			MaxRequests: 1000,
			Window:      time.Minute,
			Prefix:      "auth",
		}),
		Health:         store,
		Gatherer:       reg,
		AllowedOrigins: []string{"http://localhost:5173"},
	})
	return a
}

// do sends a JSON request. token may be empty; body may be nil, a string
// (sent verbatim) or anything json.Marshal accepts.
func (a *api) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(a.t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// login creates a verified user with the role and returns its token.
func (a *api) login(username string, role models.Role) (*models.User, string) {
	a.t.Helper()

	user := testutil.CreateTestUser(a.t, a.db, username, "secret123", role)
	w := a.do(http.MethodPost, "/api/login", "", map[string]string{
		"username": username,
		"password": "secret123",
	})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	token, _ := decode(a.t, w)["token"].(string)
	require.NotEmpty(a.t, token)
	return user, token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// day formats epoch shifted by n days at the given hour.
func day(n, hour int) string {
	return epoch.AddDate(0, 0, n).Add(time.Duration(hour-epoch.Hour()) * time.Hour).Format("2006-01-02 15:04:05")
}
