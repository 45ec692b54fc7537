package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixit-hub/fixit/internal/config"
	"github.com/fixit-hub/fixit/internal/logging"
	"github.com/fixit-hub/fixit/internal/middleware"
)

const (
	adminEmail    = "ops@fixit.test"
	adminPassword = "admin-password"
)

type response struct {
	status int
	body   map[string]any
	header http.Header
}

func testConfig() config.Config {
	return config.Config{
		AppName:         "Fixit",
		Env:             "test",
		IdempotencyTTL:  time.Hour,
		JWTSecret:       "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		CommissionRate:  decimal.RequireFromString("0.20"),
		AdminAccountID:  config.DefaultAdminAccountID,
		LoginRateLimit:  5,
	}
}

func newTestApp(t *testing.T, withCache bool) *fiber.App {
	t.Helper()
	logger := logging.Discard()
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logger)})

	deps := Deps{Cfg: testConfig(), Logger: logger}
	if withCache {
		mr := miniredis.RunT(t)
		deps.Cache = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = deps.Cache.Close() })
	}

	services, err := Setup(app, deps)
	require.NoError(t, err)
	_, err = services.Identity.EnsureAdmin(context.Background(), deps.Cfg.AdminAccountID, adminEmail, adminPassword)
	require.NoError(t, err)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, token, idemKey string, body any) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, header: resp.Header, body: map[string]any{}}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

func signUp(t *testing.T, app *fiber.App, name, email, role string) (id, token string) {
	t.Helper()
	if role != "admin" {
		res := call(t, app, http.MethodPost, "/api/v1/auth/register", "", "", map[string]any{
			"name": name, "email": email, "password": "correct-horse", "role": role,
		})
		require.Equal(t, http.StatusCreated, res.status, res.body)
	}
	password := "correct-horse"
	if role == "admin" {
		password = adminPassword
	}
	res := call(t, app, http.MethodPost, "/api/v1/auth/login", "", "", map[string]any{"email": email, "password": password})
	require.Equal(t, http.StatusOK, res.status, res.body)
	user := res.body["user"].(map[string]any)
	return user["id"].(string), res.body["access_token"].(string)
}

func TestMarketplaceFlow(t *testing.T) {
	app := newTestApp(t, true)

	techID, techToken := signUp(t, app, "Tariq", "tariq@fixit.test", "technician")
	custID, custToken := signUp(t, app, "Chen", "chen@fixit.test", "customer")
	_, adminToken := signUp(t, app, "", adminEmail, "admin")

	res := call(t, app, http.MethodPost, "/api/v1/services", techToken, "", map[string]any{
		"name": "Leak repair", "category": "plumbing", "price": 1000, "location": "Douala",
	})
	require.Equal(t, http.StatusCreated, res.status, res.body)
	serviceID := res.body["id"].(string)

	res = call(t, app, http.MethodPost, "/api/v1/services", custToken, "", map[string]any{
		"name": "Nope", "category": "plumbing", "price": 1000, "location": "Douala",
	})
	assert.Equal(t, http.StatusForbidden, res.status)

	booking := map[string]any{"service_id": serviceID, "date": "2026-11-02", "time": "09:30"}
	res = call(t, app, http.MethodPost, "/api/v1/bookings", custToken, "book-1", booking)
	require.Equal(t, http.StatusCreated, res.status, res.body)
	bookingID := res.body["id"].(string)
	assert.Equal(t, "confirmed", res.body["status"])
	assert.Equal(t, techID, res.body["technician_id"])

	replayed := call(t, app, http.MethodPost, "/api/v1/bookings", custToken, "book-1", booking)
	assert.Equal(t, http.StatusCreated, replayed.status)
	assert.Equal(t, "true", replayed.header.Get("Idempotent-Replayed"))
	assert.Equal(t, bookingID, replayed.body["id"])

	res = call(t, app, http.MethodGet, "/api/v1/wallet", adminToken, "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.EqualValues(t, 1000, res.body["balance"])

	res = call(t, app, http.MethodPut, "/api/v1/bookings/"+bookingID+"/complete", techToken, "complete-1", nil)
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.Equal(t, "completed", res.body["status"])

	res = call(t, app, http.MethodPut, "/api/v1/bookings/"+bookingID+"/complete", techToken, "complete-2", nil)
	assert.Equal(t, http.StatusConflict, res.status)

	res = call(t, app, http.MethodGet, "/api/v1/wallet", techToken, "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.EqualValues(t, 800, res.body["balance"])

	res = call(t, app, http.MethodGet, "/api/v1/customers/"+custID+"/bookings", custToken, "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, res.body["bookings"], 1)

	res = call(t, app, http.MethodPost, "/api/v1/payouts", techToken, "payout-1", map[string]any{"amount": 900})
	assert.Equal(t, http.StatusUnprocessableEntity, res.status, res.body)

	res = call(t, app, http.MethodPost, "/api/v1/payouts", techToken, "payout-2", map[string]any{"amount": 500})
	require.Equal(t, http.StatusCreated, res.status, res.body)
	payoutID := res.body["id"].(string)

	res = call(t, app, http.MethodGet, "/api/v1/admin/payouts/pending", adminToken, "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, res.body["payouts"], 1)

	res = call(t, app, http.MethodPost, "/api/v1/admin/payouts/"+payoutID+"/approve", techToken, "approve-1", nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = call(t, app, http.MethodPost, "/api/v1/admin/payouts/"+payoutID+"/approve", adminToken, "approve-1", nil)
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.Equal(t, "approved", res.body["status"])

	res = call(t, app, http.MethodGet, "/api/v1/wallet", techToken, "", nil)
	assert.EqualValues(t, 300, res.body["balance"])

	res = call(t, app, http.MethodGet, "/api/v1/wallet/transactions?limit=10", techToken, "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, res.body["transactions"], 2)

	res = call(t, app, http.MethodGet, "/api/v1/admin/earnings", adminToken, "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.EqualValues(t, 1, res.body["completed_bookings"])
	assert.EqualValues(t, 1000, res.body["total_revenue"])
	assert.EqualValues(t, 200, res.body["admin_earnings"])
	assert.EqualValues(t, 800, res.body["technician_earnings"])

	res = call(t, app, http.MethodGet, "/api/v1/admin/most-booked-category", adminToken, "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "plumbing", res.body["category"])

	res = call(t, app, http.MethodGet, "/api/v1/admin/ledger/verify", adminToken, "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, true, res.body["consistent"])

	res = call(t, app, http.MethodGet, "/api/v1/admin/earnings", custToken, "", nil)
	assert.Equal(t, http.StatusForbidden, res.status)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t, false)

	res := call(t, app, http.MethodGet, "/api/v1/wallet", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = call(t, app, http.MethodGet, "/api/v1/ping", "", "", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "ok", res.body["status"])
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	app := newTestApp(t, false)
	_, token := signUp(t, app, "Chen", "chen@fixit.test", "customer")

	res := call(t, app, http.MethodGet, "/api/v1/me", token, "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "customer", res.body["role"])

	res = call(t, app, http.MethodPost, "/api/v1/auth/logout", token, "", nil)
	require.Equal(t, http.StatusOK, res.status)

	res = call(t, app, http.MethodGet, "/api/v1/me", token, "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	app := newTestApp(t, false)
	res := call(t, app, http.MethodPost, "/api/v1/auth/register", "", "", map[string]any{
		"name": "Eve", "email": "eve@fixit.test", "password": "correct-horse", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Contains(t, res.body["fields"], "role")
}

func TestHealthzReportsDisabledBackends(t *testing.T) {
	app := newTestApp(t, false)
	res := call(t, app, http.MethodGet, "/healthz", "", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	status := res.body["status"].(map[string]any)
	assert.Equal(t, "disabled", status["postgres"])
	assert.Equal(t, "disabled", status["redis"])
}

func TestSetupRequiresBackendsOutsideDev(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"
	_, err := Setup(fiber.New(), Deps{Cfg: cfg, Logger: logging.Discard()})
	assert.Error(t, err)
}

func TestPingEchoesRequestID(t *testing.T) {
	app := newTestApp(t, false)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "req-42", body["request_id"])
}

func TestPayoutRejectsBadAmountsAsInvalidAmount(t *testing.T) {
	app := newTestApp(t, false)
	_, techToken := signUp(t, app, "Tariq", "tariq@fixit.test", "technician")

	for _, amount := range []any{0, -5, "abc", 12.5} {
		res := call(t, app, http.MethodPost, "/api/v1/payouts", techToken, "", map[string]any{"amount": amount})
		assert.Equal(t, http.StatusBadRequest, res.status, "amount %v", amount)
		assert.Equal(t, "invalid_amount", res.body["kind"], "amount %v", amount)
	}

	res := call(t, app, http.MethodGet, "/api/v1/payouts/mine", techToken, "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Empty(t, res.body["payouts"])
}
