package payout

import (
	"context"
	"fmt"
	"sync"

	"github.com/fixit-hub/fixit/internal/apperr"
)

type memoryRepository struct {
	mu       sync.RWMutex
	requests map[string]Request
	order    []string
}

// NewMemoryRepository constructs an in-memory repository for tests and development.
func NewMemoryRepository() Repository {
	return &memoryRepository{requests: make(map[string]Request)}
}

func (r *memoryRepository) Create(_ context.Context, p Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requests[p.ID]; exists {
		return fmt.Errorf("payout %s exists: %w", p.ID, apperr.ErrConflict)
	}
	r.requests[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.requests[id]
	if !ok {
		return Request{}, apperr.NotFound("payout request", id)
	}
	return p, nil
}

func (r *memoryRepository) GetForUpdate(ctx context.Context, id string) (Request, error) {
	return r.Get(ctx, id)
}

func (r *memoryRepository) Update(_ context.Context, p Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[p.ID]; !ok {
		return apperr.NotFound("payout request", p.ID)
	}
	r.requests[p.ID] = p
	return nil
}

func (r *memoryRepository) ListByStatus(_ context.Context, status Status) ([]Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Request
	for _, id := range r.order {
		if p := r.requests[id]; p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepository) ListByTechnician(_ context.Context, technicianID string) ([]Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Request
	for i := len(r.order) - 1; i >= 0; i-- {
		if p := r.requests[r.order[i]]; p.TechnicianID == technicianID {
			out = append(out, p)
		}
	}
	return out, nil
}
