package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/ledger"
	"github.com/fixit-hub/fixit/internal/logging"
	"github.com/fixit-hub/fixit/internal/validation"
)

type stubVerifier map[string]ledger.Role

func (s stubVerifier) Principal(_ context.Context, token string) (string, ledger.Role, error) {
	role, ok := s[token]
	if !ok {
		return "", "", errors.New("unknown token")
	}
	return "user-" + token, role, nil
}

func newAuthedApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	verifier := stubVerifier{"tech": ledger.RoleTechnician, "cust": ledger.RoleCustomer}
	app.Get("/whoami", JWTAuth(verifier), func(c *fiber.Ctx) error {
		id, role := Actor(c)
		return c.JSON(fiber.Map{"id": id, "role": role})
	})
	app.Post("/jobs", JWTAuth(verifier), RequireRoles(ledger.RoleTechnician, ledger.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	return app
}

func TestJWTAuth(t *testing.T) {
	app := newAuthedApp()

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"missing", "", "", fiber.StatusUnauthorized},
		{"wrong scheme", "Basic abc", "", fiber.StatusUnauthorized},
		{"unknown token", "Bearer nope", "", fiber.StatusUnauthorized},
		{"valid header", "Bearer tech", "", fiber.StatusOK},
		{"valid query", "", "?access_token=cust", fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/whoami"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRequireRoles(t *testing.T) {
	app := newAuthedApp()

	for token, status := range map[string]int{"tech": fiber.StatusCreated, "cust": fiber.StatusForbidden} {
		req := httptest.NewRequest(fiber.MethodPost, "/jobs", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, status, resp.StatusCode, token)
	}
}

func TestErrorHandlerMapsKinds(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Get("/missing", func(*fiber.Ctx) error { return apperr.NotFound("booking", "b-1") })
	app.Get("/broke", func(*fiber.Ctx) error { return fmt.Errorf("db exploded") })
	app.Get("/funds", func(*fiber.Ctx) error {
		return &apperr.InsufficientFundsError{AccountID: "a", Available: 1, Requested: 2}
	})
	app.Get("/invalid", func(*fiber.Ctx) error {
		return validation.Struct(struct {
			Amount int64 `json:"amount" validate:"gt=0"`
		}{})
	})

	cases := map[string]struct {
		status int
		kind   string
	}{
		"/missing": {fiber.StatusNotFound, "not_found"},
		"/broke":   {fiber.StatusInternalServerError, ""},
		"/funds":   {fiber.StatusUnprocessableEntity, "insufficient_funds"},
		"/invalid": {fiber.StatusBadRequest, "invalid"},
	}
	for path, want := range cases {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, want.status, resp.StatusCode, path)

		var body errorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, want.kind, string(body.Kind), path)
		if path == "/broke" {
			assert.Equal(t, "internal server error", body.Error)
		}
		if path == "/invalid" {
			assert.Equal(t, "gt", body.Fields["amount"])
		}
	}
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	app.Post("/login", LoginRateLimit(cache, 2), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	send := func(email string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(`{"email":"`+email+`"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, send("a@example.com"))
	assert.Equal(t, fiber.StatusOK, send("A@example.com"))
	assert.Equal(t, fiber.StatusTooManyRequests, send("a@example.com"))
	assert.Equal(t, fiber.StatusOK, send("b@example.com"))

	mr.FastForward(61 * time.Second)
	assert.Equal(t, fiber.StatusOK, send("a@example.com"))
}
