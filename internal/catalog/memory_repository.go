package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fixit-hub/fixit/internal/apperr"
)

type memoryRepository struct {
	mu       sync.RWMutex
	services map[string]Service
}

// NewMemoryRepository constructs an in-memory repository for tests and development.
func NewMemoryRepository() Repository {
	return &memoryRepository{services: make(map[string]Service)}
}

func (r *memoryRepository) Create(_ context.Context, svc Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[svc.ID]; exists {
		return fmt.Errorf("service %s exists: %w", svc.ID, apperr.ErrConflict)
	}
	r.services[svc.ID] = svc
	return nil
}

func (r *memoryRepository) Update(_ context.Context, svc Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.services[svc.ID]; !ok {
		return apperr.NotFound("service", svc.ID)
	}
	r.services[svc.ID] = svc
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[id]
	if !ok {
		return Service{}, apperr.NotFound("service", id)
	}
	return svc, nil
}

func (r *memoryRepository) ListByCreator(_ context.Context, userID string) ([]Service, error) {
	return r.filter(func(s Service) bool { return s.CreatedBy == userID }), nil
}

func (r *memoryRepository) Search(_ context.Context, f Filter) ([]Service, int, error) {
	f = f.normalized()
	location := strings.ToLower(strings.TrimSpace(f.Location))
	matches := r.filter(func(s Service) bool {
		switch {
		case f.Category != "" && s.Category != f.Category:
			return false
		case f.MinPrice > 0 && s.Price < f.MinPrice:
			return false
		case f.MaxPrice > 0 && s.Price > f.MaxPrice:
			return false
		case location != "" && !strings.Contains(strings.ToLower(s.Location), location):
			return false
		}
		return true
	})

	total := len(matches)
	start := f.offset()
	if start >= total {
		return nil, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

// filter returns matching services newest first.
func (r *memoryRepository) filter(keep func(Service) bool) []Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Service
	for _, s := range r.services {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
