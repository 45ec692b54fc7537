package auth

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fixit-hub/fixit/internal/identity"
	"github.com/fixit-hub/fixit/internal/ledger"
	"github.com/fixit-hub/fixit/internal/middleware"
	"github.com/fixit-hub/fixit/internal/validation"
)

// Handler exposes auth endpoints for register/login/refresh/logout.
type Handler struct {
	ids *identity.Service
	svc *Service
}

func NewHandler(ids *identity.Service, svc *Service) *Handler {
	return &Handler{ids: ids, svc: svc}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,oneof=customer technician"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	TokenVersion int        `json:"token_version"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         string(u.Role),
		TokenVersion: u.TokenVersion,
		CreatedAt:    u.CreatedAt,
		LastLogin:    u.LastLogin,
	}
}

type loginResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
}

// Register creates a customer or technician account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return err
	}
	user, err := h.ids.Register(c.UserContext(), identity.Registration{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     ledger.Role(req.Role),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toUserResponse(user))
}

// Login validates credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return err
	}
	user, err := h.ids.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	pair, err := h.svc.Login(user)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(loginResponse{
		User:         toUserResponse(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return err
	}
	token, exp, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access_token": token, "expires_in": exp})
}

// Logout invalidates the caller's existing tokens by bumping the token version.
func (h *Handler) Logout(c *fiber.Ctx) error {
	userID, _ := middleware.Actor(c)
	if err := h.svc.Logout(c.UserContext(), userID); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

// Me returns the caller's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	userID, _ := middleware.Actor(c)
	user, err := h.ids.Get(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toUserResponse(user))
}
