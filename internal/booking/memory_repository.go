package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fixit-hub/fixit/internal/apperr"
)

type memoryRepository struct {
	mu       sync.RWMutex
	bookings map[string]Booking
	order    []string
}

// NewMemoryRepository constructs an in-memory repository. Row locking is left
// to txn.Memory, which serializes every unit of work.
func NewMemoryRepository() Repository {
	return &memoryRepository{bookings: make(map[string]Booking)}
}

func (r *memoryRepository) Create(_ context.Context, b Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bookings[b.ID]; exists {
		return fmt.Errorf("booking %s exists: %w", b.ID, apperr.ErrConflict)
	}
	r.bookings[b.ID] = b
	r.order = append(r.order, b.ID)
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return Booking{}, apperr.NotFound("booking", id)
	}
	return b, nil
}

func (r *memoryRepository) GetForUpdate(ctx context.Context, id string) (Booking, error) {
	return r.Get(ctx, id)
}

func (r *memoryRepository) UpdateStatus(_ context.Context, id string, status Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return apperr.NotFound("booking", id)
	}
	b.Status = status
	b.UpdatedAt = at
	r.bookings[id] = b
	return nil
}

func (r *memoryRepository) ListByCustomer(_ context.Context, customerID string) ([]Booking, error) {
	out := r.filter(func(b Booking) bool { return b.CustomerID == customerID })
	reverse(out)
	return out, nil
}

func (r *memoryRepository) ListByTechnician(_ context.Context, technicianID string) ([]Booking, error) {
	out := r.filter(func(b Booking) bool { return b.TechnicianID == technicianID })
	reverse(out)
	return out, nil
}

func (r *memoryRepository) ListByStatus(_ context.Context, status Status) ([]Booking, error) {
	return r.filter(func(b Booking) bool { return b.Status == status }), nil
}

// filter returns matches in insertion order.
func (r *memoryRepository) filter(keep func(Booking) bool) []Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Booking
	for _, id := range r.order {
		if b := r.bookings[id]; keep(b) {
			out = append(out, b)
		}
	}
	return out
}

func reverse(bs []Booking) {
	for i, j := 0, len(bs)-1; i < j; i, j = i+1, j-1 {
		bs[i], bs[j] = bs[j], bs[i]
	}
}
