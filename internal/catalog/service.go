// Package catalog manages the service listings customers book.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/ledger"
)

// CatalogService manages listings.
type CatalogService struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a catalog service.
func NewService(repo Repository) *CatalogService {
	return &CatalogService{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// AddInput captures a new listing.
type AddInput struct {
	Name        string
	Category    string
	Description string
	Price       int64
	Location    string
}

// UpdateInput carries the fields to change; nil leaves a field as is.
type UpdateInput struct {
	Name        *string
	Category    *string
	Description *string
	Price       *int64
	Location    *string
	Available   *bool
}

// Add lists a new service owned by actorID.
func (s *CatalogService) Add(ctx context.Context, actorID string, role ledger.Role, in AddInput) (Service, error) {
	if role != ledger.RoleTechnician && role != ledger.RoleAdmin {
		return Service{}, fmt.Errorf("role %s cannot list services: %w", role, apperr.ErrForbidden)
	}
	svc := Service{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Category:    strings.TrimSpace(in.Category),
		Description: in.Description,
		Price:       in.Price,
		Location:    strings.TrimSpace(in.Location),
		Available:   true,
		CreatedBy:   actorID,
	}
	if err := validate(svc); err != nil {
		return Service{}, err
	}
	svc.CreatedAt = s.now()
	svc.UpdatedAt = svc.CreatedAt
	if err := s.repo.Create(ctx, svc); err != nil {
		return Service{}, err
	}
	return svc, nil
}

// Update changes a listing. Only its owner or the admin may do so.
func (s *CatalogService) Update(ctx context.Context, actorID string, role ledger.Role, id string, in UpdateInput) (Service, error) {
	svc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Service{}, err
	}
	if svc.CreatedBy != actorID && role != ledger.RoleAdmin {
		return Service{}, fmt.Errorf("service %s belongs to another technician: %w", id, apperr.ErrForbidden)
	}

	if in.Name != nil {
		svc.Name = strings.TrimSpace(*in.Name)
	}
	if in.Category != nil {
		svc.Category = strings.TrimSpace(*in.Category)
	}
	if in.Description != nil {
		svc.Description = *in.Description
	}
	if in.Price != nil {
		svc.Price = *in.Price
	}
	if in.Location != nil {
		svc.Location = strings.TrimSpace(*in.Location)
	}
	if in.Available != nil {
		svc.Available = *in.Available
	}
	if err := validate(svc); err != nil {
		return Service{}, err
	}
	svc.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, svc); err != nil {
		return Service{}, err
	}
	return svc, nil
}

// Get returns one listing.
func (s *CatalogService) Get(ctx context.Context, id string) (Service, error) {
	return s.repo.Get(ctx, id)
}

// ListByTechnician returns a technician's listings, newest first.
func (s *CatalogService) ListByTechnician(ctx context.Context, technicianID string) ([]Service, error) {
	return s.repo.ListByCreator(ctx, technicianID)
}

// Search returns one page of listings matching f.
func (s *CatalogService) Search(ctx context.Context, f Filter) (Page, error) {
	if f.MinPrice < 0 || f.MaxPrice < 0 || (f.MaxPrice > 0 && f.MinPrice > f.MaxPrice) {
		return Page{}, fmt.Errorf("price range %d-%d: %w", f.MinPrice, f.MaxPrice, apperr.ErrInvalidAmount)
	}
	f = f.normalized()
	services, total, err := s.repo.Search(ctx, f)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Services:   services,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: totalPages(total, f.Limit),
	}, nil
}

func validate(svc Service) error {
	if svc.Name == "" || svc.Category == "" || svc.Location == "" {
		return fmt.Errorf("name, category and location are required: %w", apperr.ErrInvalid)
	}
	if svc.Price <= 0 {
		return fmt.Errorf("price %d: %w", svc.Price, apperr.ErrInvalidAmount)
	}
	return nil
}
