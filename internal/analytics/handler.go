package analytics

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the admin analytics endpoints.
type Handler struct {
	aggregator *Aggregator
}

// NewHandler builds an analytics HTTP handler.
func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{aggregator: aggregator}
}

// Earnings reports the gross split of completed bookings.
func (h *Handler) Earnings(c *fiber.Ctx) error {
	e, err := h.aggregator.Earnings(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"completed_bookings":  e.CompletedBookings,
		"total_revenue":       e.TotalRevenue,
		"admin_earnings":      e.AdminEarnings,
		"technician_earnings": e.TechnicianEarnings,
		"commission_rate":     e.CommissionRate.String(),
	})
}

// MostBookedCategory reports the most popular category.
func (h *Handler) MostBookedCategory(c *fiber.Ctx) error {
	stats, err := h.aggregator.MostBookedCategory(c.UserContext())
	if err != nil {
		return err
	}
	counts := make([]fiber.Map, 0, len(stats.Counts))
	for _, cc := range stats.Counts {
		counts = append(counts, fiber.Map{"category": cc.Category, "count": cc.Count})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"category": stats.Category,
		"count":    stats.Count,
		"counts":   counts,
	})
}
