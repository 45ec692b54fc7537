package catalog

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fixit-hub/fixit/internal/middleware"
	"github.com/fixit-hub/fixit/internal/validation"
)

// Handler exposes catalog HTTP endpoints.
type Handler struct {
	service *CatalogService
}

// NewHandler builds a catalog HTTP handler.
func NewHandler(service *CatalogService) *Handler {
	return &Handler{service: service}
}

type addRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Category    string `json:"category" validate:"required,max=60"`
	Description string `json:"description" validate:"max=2000"`
	Price       int64  `json:"price" validate:"gt=0"`
	Location    string `json:"location" validate:"required,max=120"`
}

type updateRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=120"`
	Category    *string `json:"category" validate:"omitempty,max=60"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Price       *int64  `json:"price" validate:"omitempty,gt=0"`
	Location    *string `json:"location" validate:"omitempty,max=120"`
	Available   *bool   `json:"available"`
}

type searchQuery struct {
	Category string `query:"category"`
	MinPrice int64  `query:"minPrice" validate:"gte=0"`
	MaxPrice int64  `query:"maxPrice" validate:"gte=0"`
	Location string `query:"location"`
	Page     int    `query:"page" validate:"gte=0"`
	Limit    int    `query:"limit" validate:"gte=0,lte=100"`
}

type serviceResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Location    string    `json:"location"`
	Available   bool      `json:"available"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toResponse(s Service) serviceResponse {
	return serviceResponse{
		ID:          s.ID,
		Name:        s.Name,
		Category:    s.Category,
		Description: s.Description,
		Price:       s.Price,
		Location:    s.Location,
		Available:   s.Available,
		CreatedBy:   s.CreatedBy,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func toResponses(services []Service) []serviceResponse {
	out := make([]serviceResponse, 0, len(services))
	for _, s := range services {
		out = append(out, toResponse(s))
	}
	return out
}

// Add lists a new service for the authenticated technician.
func (h *Handler) Add(c *fiber.Ctx) error {
	var req addRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return err
	}
	userID, role := middleware.Actor(c)
	svc, err := h.service.Add(c.UserContext(), userID, role, AddInput{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Price:       req.Price,
		Location:    req.Location,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toResponse(svc))
}

// Update edits a listing owned by the caller.
func (h *Handler) Update(c *fiber.Ctx) error {
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return err
	}
	userID, role := middleware.Actor(c)
	svc, err := h.service.Update(c.UserContext(), userID, role, c.Params("id"), UpdateInput{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Price:       req.Price,
		Location:    req.Location,
		Available:   req.Available,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(svc))
}

// Get returns one listing.
func (h *Handler) Get(c *fiber.Ctx) error {
	svc, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(svc))
}

// ListByTechnician returns the listings of the technician in the path.
func (h *Handler) ListByTechnician(c *fiber.Ctx) error {
	services, err := h.service.ListByTechnician(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"services": toResponses(services)})
}

// Search filters listings with query parameters.
func (h *Handler) Search(c *fiber.Ctx) error {
	var q searchQuery
	if err := c.QueryParser(&q); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(q); err != nil {
		return err
	}
	page, err := h.service.Search(c.UserContext(), Filter{
		Category: q.Category,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		Location: q.Location,
		Page:     q.Page,
		Limit:    q.Limit,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"services":    toResponses(page.Services),
		"total":       page.Total,
		"page":        page.Page,
		"limit":       page.Limit,
		"total_pages": page.TotalPages,
	})
}
