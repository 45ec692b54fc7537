package wallet

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fixit-hub/fixit/internal/middleware"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Balance returns the caller's balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	accountID, _ := middleware.Actor(c)
	balance, err := h.service.Balance(c.UserContext(), accountID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id": balance.AccountID,
		"role":       balance.Role,
		"balance":    balance.Amount,
		"timestamp":  balance.AsOf,
	})
}

// Transactions returns the caller's ledger entries.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	accountID, _ := middleware.Actor(c)
	txs, err := h.service.History(c.UserContext(), accountID, c.QueryInt("limit"))
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(txs))
	for _, tx := range txs {
		out = append(out, fiber.Map{
			"id":             tx.ID,
			"direction":      tx.Direction,
			"amount":         tx.Amount,
			"reference_kind": tx.ReferenceKind,
			"reference_id":   tx.ReferenceID,
			"reason":         tx.Reason,
			"created_at":     tx.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out})
}

// Verify reports accounts whose balance drifted from their entries.
func (h *Handler) Verify(c *fiber.Ctx) error {
	mismatches, err := h.service.Verify(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(mismatches))
	for _, m := range mismatches {
		out = append(out, fiber.Map{
			"account_id":  m.AccountID,
			"role":        m.Role,
			"balance":     m.Balance,
			"entries_sum": m.EntriesSum,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"consistent": len(out) == 0, "mismatches": out})
}
