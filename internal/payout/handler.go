package payout

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/middleware"
)

// Handler exposes payout HTTP endpoints.
type Handler struct {
	processor *Processor
}

// NewHandler builds a payout HTTP handler.
func NewHandler(processor *Processor) *Handler {
	return &Handler{processor: processor}
}

type requestPayout struct {
	Amount int64 `json:"amount"`
}

type payoutResponse struct {
	ID              string     `json:"id"`
	TechnicianID    string     `json:"technician_id"`
	Amount          int64      `json:"amount"`
	Status          string     `json:"status"`
	DisbursementRef string     `json:"disbursement_ref,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
}

func toResponse(p Request) payoutResponse {
	return payoutResponse{
		ID:              p.ID,
		TechnicianID:    p.TechnicianID,
		Amount:          p.Amount,
		Status:          string(p.Status),
		DisbursementRef: p.DisbursementRef,
		CreatedAt:       p.CreatedAt,
		ProcessedAt:     p.ProcessedAt,
	}
}

func toResponses(requests []Request) []payoutResponse {
	out := make([]payoutResponse, 0, len(requests))
	for _, p := range requests {
		out = append(out, toResponse(p))
	}
	return out
}

// Request files a payout for the authenticated technician.
func (h *Handler) Request(c *fiber.Ctx) error {
	var req requestPayout
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("payout amount: %v: %w", err, apperr.ErrInvalidAmount)
	}
	// RequestPayout enforces the amount rules.
	technicianID, _ := middleware.Actor(c)
	p, err := h.processor.RequestPayout(c.UserContext(), technicianID, req.Amount)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toResponse(p))
}

// Mine lists the caller's payout requests.
func (h *Handler) Mine(c *fiber.Ctx) error {
	technicianID, _ := middleware.Actor(c)
	requests, err := h.processor.ByTechnician(c.UserContext(), technicianID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"payouts": toResponses(requests)})
}

// Pending lists requests awaiting a decision.
func (h *Handler) Pending(c *fiber.Ctx) error {
	requests, err := h.processor.Pending(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"payouts": toResponses(requests)})
}

// Approve disburses a pending request.
func (h *Handler) Approve(c *fiber.Ctx) error {
	p, err := h.processor.ApprovePayout(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(p))
}

// Reject closes a pending request.
func (h *Handler) Reject(c *fiber.Ctx) error {
	p, err := h.processor.RejectPayout(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(p))
}
