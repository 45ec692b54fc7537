package booking

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fixit-hub/fixit/internal/ledger"
	"github.com/fixit-hub/fixit/internal/middleware"
	"github.com/fixit-hub/fixit/internal/validation"
)

// Handler exposes booking HTTP endpoints.
type Handler struct {
	manager *Manager
}

// NewHandler builds a booking HTTP handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

type createRequest struct {
	ServiceID    string `json:"service_id" validate:"required,uuid"`
	TechnicianID string `json:"technician_id" validate:"omitempty,uuid"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	Time         string `json:"time" validate:"required,datetime=15:04"`
}

type bookingResponse struct {
	ID           string    `json:"id"`
	ServiceID    string    `json:"service_id"`
	ServiceName  string    `json:"service_name,omitempty"`
	Category     string    `json:"category,omitempty"`
	CustomerID   string    `json:"customer_id"`
	TechnicianID string    `json:"technician_id"`
	Amount       int64     `json:"amount"`
	Status       string    `json:"status"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toResponse(v View) bookingResponse {
	return bookingResponse{
		ID:           v.ID,
		ServiceID:    v.ServiceID,
		ServiceName:  v.ServiceName,
		Category:     v.Category,
		CustomerID:   v.CustomerID,
		TechnicianID: v.TechnicianID,
		Amount:       v.Amount,
		Status:       string(v.Status),
		Date:         v.Date,
		Time:         v.Time,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}

// Create books a service for the authenticated customer.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return err
	}
	customerID, _ := middleware.Actor(c)
	b, err := h.manager.CreateBooking(c.UserContext(), CreateInput{
		ServiceID:    req.ServiceID,
		CustomerID:   customerID,
		TechnicianID: req.TechnicianID,
		Date:         req.Date,
		Time:         req.Time,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toResponse(View{Booking: b}))
}

// Complete marks a booking completed and settles it.
func (h *Handler) Complete(c *fiber.Ctx) error {
	actorID, role := middleware.Actor(c)
	b, err := h.manager.CompleteBookingAs(c.UserContext(), actorID, role, c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(View{Booking: b}))
}

// ListByCustomer returns the bookings of the customer in the path.
func (h *Handler) ListByCustomer(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := ownerOrAdmin(c, id); err != nil {
		return err
	}
	views, err := h.manager.ListByCustomer(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"bookings": toResponses(views)})
}

// ListByTechnician returns the bookings of the technician in the path.
func (h *Handler) ListByTechnician(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := ownerOrAdmin(c, id); err != nil {
		return err
	}
	views, err := h.manager.ListByTechnician(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"bookings": toResponses(views)})
}

func ownerOrAdmin(c *fiber.Ctx, id string) error {
	actorID, role := middleware.Actor(c)
	if actorID != id && role != ledger.RoleAdmin {
		return fiber.NewError(http.StatusForbidden, "bookings of another user")
	}
	return nil
}

func toResponses(views []View) []bookingResponse {
	out := make([]bookingResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toResponse(v))
	}
	return out
}
