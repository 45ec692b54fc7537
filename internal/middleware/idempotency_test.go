package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixit-hub/fixit/internal/logging"
)

func setupIdempotentApp(t *testing.T, status int) (*fiber.App, *int32) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var calls int32
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(localUserID, c.Get("X-User"))
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/resource", func(c *fiber.Ctx) error {
		n := atomic.AddInt32(&calls, 1)
		return c.Status(status).JSON(fiber.Map{"call": n})
	})
	return app, &calls
}

func post(t *testing.T, app *fiber.App, user, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/resource", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-User", user)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, calls := setupIdempotentApp(t, fiber.StatusCreated)

	status, _ := post(t, app, "u1", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls := setupIdempotentApp(t, fiber.StatusCreated)

	status, body := post(t, app, "u1", "abc123")
	require.Equal(t, fiber.StatusCreated, status)

	status2, body2 := post(t, app, "u1", "abc123")
	assert.Equal(t, fiber.StatusCreated, status2)
	assert.JSONEq(t, body, body2)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	app, calls := setupIdempotentApp(t, fiber.StatusCreated)

	post(t, app, "u1", "shared")
	post(t, app, "u2", "shared")
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	app, calls := setupIdempotentApp(t, fiber.StatusInternalServerError)

	post(t, app, "u1", "retry-me")
	post(t, app, "u1", "retry-me")
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}
