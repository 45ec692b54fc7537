package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fixit-hub/fixit/internal/ledger"
)

const (
	localUserID = "user_id"
	localRole   = "role"
)

// TokenVerifier resolves an access token to the user it was issued to.
type TokenVerifier interface {
	Principal(ctx context.Context, token string) (userID string, role ledger.Role, err error)
}

// JWTAuth returns a middleware that validates bearer access tokens. Tokens are
// read from the Authorization header, or from the access_token query parameter
// for EventSource clients that cannot set headers.
func JWTAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("access_token")
		if authz := c.Get(fiber.HeaderAuthorization); authz != "" {
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
			}
			token = strings.TrimSpace(authz[len("Bearer "):])
		}
		if token == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}

		userID, role, err := verifier.Principal(c.UserContext(), token)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "token invalidated")
		}

		c.Locals(localUserID, userID)
		c.Locals(localRole, role)
		return c.Next()
	}
}

// Actor returns the authenticated user id and role.
func Actor(c *fiber.Ctx) (string, ledger.Role) {
	userID, _ := c.Locals(localUserID).(string)
	role, _ := c.Locals(localRole).(ledger.Role)
	return userID, role
}

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...ledger.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, role := Actor(c)
		for _, allowed := range roles {
			if role == allowed {
				return c.Next()
			}
		}
		return fiber.NewError(http.StatusForbidden, "role not permitted")
	}
}
