// Package booking owns booking state and hands lifecycle events to settlement.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/catalog"
	"github.com/fixit-hub/fixit/internal/ledger"
	"github.com/fixit-hub/fixit/internal/notification"
	"github.com/fixit-hub/fixit/internal/settlement"
	"github.com/fixit-hub/fixit/internal/txn"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// ServiceLookup resolves the listing a booking is made against.
type ServiceLookup interface {
	Get(ctx context.Context, id string) (catalog.Service, error)
}

// Manager runs the booking lifecycle. Each transition and its ledger entries
// commit in one unit of work; notifications go out after commit.
type Manager struct {
	repo     Repository
	services ServiceLookup
	accounts ledger.Store
	engine   *settlement.Engine
	tx       txn.Transactor
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager wires the booking manager.
func NewManager(repo Repository, services ServiceLookup, accounts ledger.Store, engine *settlement.Engine,
	tx txn.Transactor, notifier notification.Notifier, logger *slog.Logger) *Manager {
	return &Manager{
		repo:     repo,
		services: services,
		accounts: accounts,
		engine:   engine,
		tx:       tx,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput captures a booking request.
type CreateInput struct {
	ServiceID    string
	CustomerID   string
	TechnicianID string
	Date         string
	Time         string
}

// CreateBooking books a service for a customer. The booking is confirmed at
// once and its full amount is captured on the platform account.
func (m *Manager) CreateBooking(ctx context.Context, in CreateInput) (Booking, error) {
	if _, err := time.Parse(dateLayout, in.Date); err != nil {
		return Booking{}, fmt.Errorf("date %q must be YYYY-MM-DD: %w", in.Date, apperr.ErrInvalid)
	}
	if _, err := time.Parse(timeLayout, in.Time); err != nil {
		return Booking{}, fmt.Errorf("time %q must be HH:MM: %w", in.Time, apperr.ErrInvalid)
	}

	svc, err := m.services.Get(ctx, in.ServiceID)
	if err != nil {
		return Booking{}, err
	}
	if !svc.Available {
		return Booking{}, fmt.Errorf("service %s is not available: %w", svc.ID, apperr.ErrInvalidState)
	}
	technicianID := in.TechnicianID
	if technicianID == "" {
		technicianID = svc.CreatedBy
	}
	if technicianID != svc.CreatedBy {
		return Booking{}, fmt.Errorf("service %s is not offered by technician %s: %w", svc.ID, technicianID, apperr.ErrInvalid)
	}
	if err := m.requireAccount(ctx, in.CustomerID, ledger.RoleCustomer); err != nil {
		return Booking{}, err
	}
	if err := m.requireAccount(ctx, technicianID, ledger.RoleTechnician); err != nil {
		return Booking{}, err
	}

	now := m.now()
	b := Booking{
		ID:           uuid.NewString(),
		ServiceID:    svc.ID,
		CustomerID:   in.CustomerID,
		TechnicianID: technicianID,
		Amount:       svc.Price,
		Status:       StatusConfirmed,
		Date:         in.Date,
		Time:         in.Time,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = m.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := m.engine.Apply(ctx, settlement.Event{
			Kind:         settlement.BookingConfirmed,
			BookingID:    b.ID,
			TechnicianID: b.TechnicianID,
			Amount:       b.Amount,
		}); err != nil {
			return err
		}
		return m.repo.Create(ctx, b)
	})
	if err != nil {
		return Booking{}, err
	}

	m.logger.Info("booking confirmed",
		slog.String("booking_id", b.ID),
		slog.String("technician_id", b.TechnicianID),
		slog.Int64("amount", b.Amount))
	m.notify(ctx, notification.Message{
		Kind:        notification.KindBookingCreated,
		Destination: b.TechnicianID,
		Body:        fmt.Sprintf("New booking for %s on %s at %s", svc.Name, b.Date, b.Time),
		Data:        map[string]string{"booking_id": b.ID, "service_id": svc.ID},
	})
	return b, nil
}

// CompleteBooking marks a confirmed booking completed and pays the technician
// their share.
func (m *Manager) CompleteBooking(ctx context.Context, bookingID string) (Booking, error) {
	return m.complete(ctx, bookingID, nil)
}

// CompleteBookingAs completes a booking on behalf of its technician or the admin.
func (m *Manager) CompleteBookingAs(ctx context.Context, actorID string, role ledger.Role, bookingID string) (Booking, error) {
	return m.complete(ctx, bookingID, func(b Booking) error {
		if role == ledger.RoleAdmin || b.TechnicianID == actorID {
			return nil
		}
		return fmt.Errorf("booking %s belongs to another technician: %w", b.ID, apperr.ErrForbidden)
	})
}

func (m *Manager) complete(ctx context.Context, bookingID string, authorize func(Booking) error) (Booking, error) {
	var b Booking
	err := m.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = m.repo.GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(b); err != nil {
				return err
			}
		}
		if b.Status != StatusConfirmed {
			return fmt.Errorf("booking %s is %s: %w", b.ID, b.Status, apperr.ErrInvalidState)
		}
		if _, err := m.engine.Apply(ctx, settlement.Event{
			Kind:         settlement.BookingCompleted,
			BookingID:    b.ID,
			TechnicianID: b.TechnicianID,
			Amount:       b.Amount,
		}); err != nil {
			return err
		}
		b.Status = StatusCompleted
		b.UpdatedAt = m.now()
		return m.repo.UpdateStatus(ctx, b.ID, b.Status, b.UpdatedAt)
	})
	if err != nil {
		return Booking{}, err
	}

	m.logger.Info("booking completed", slog.String("booking_id", b.ID), slog.Int64("amount", b.Amount))
	m.notify(ctx, notification.Message{
		Kind:        notification.KindBookingStatusChanged,
		Destination: b.CustomerID,
		Body:        fmt.Sprintf("Your booking on %s is now %s", b.Date, b.Status),
		Data:        map[string]string{"booking_id": b.ID, "status": string(b.Status)},
	})
	return b, nil
}

// Get returns one booking.
func (m *Manager) Get(ctx context.Context, id string) (Booking, error) {
	return m.repo.Get(ctx, id)
}

// ListByCustomer returns a customer's bookings with service details.
func (m *Manager) ListByCustomer(ctx context.Context, customerID string) ([]View, error) {
	bookings, err := m.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return m.views(ctx, bookings), nil
}

// ListByTechnician returns a technician's bookings with service details.
func (m *Manager) ListByTechnician(ctx context.Context, technicianID string) ([]View, error) {
	bookings, err := m.repo.ListByTechnician(ctx, technicianID)
	if err != nil {
		return nil, err
	}
	return m.views(ctx, bookings), nil
}

func (m *Manager) views(ctx context.Context, bookings []Booking) []View {
	cache := make(map[string]catalog.Service)
	out := make([]View, 0, len(bookings))
	for _, b := range bookings {
		svc, ok := cache[b.ServiceID]
		if !ok {
			if found, err := m.services.Get(ctx, b.ServiceID); err == nil {
				svc = found
				cache[b.ServiceID] = found
			}
		}
		out = append(out, View{Booking: b, ServiceName: svc.Name, Category: svc.Category})
	}
	return out
}

func (m *Manager) requireAccount(ctx context.Context, id string, role ledger.Role) error {
	acc, err := m.accounts.Account(ctx, id)
	if err != nil {
		return err
	}
	if acc.Role != role {
		return fmt.Errorf("account %s is %s, want %s: %w", id, acc.Role, role, apperr.ErrInvalidState)
	}
	return nil
}

func (m *Manager) notify(ctx context.Context, msg notification.Message) {
	if m.notifier == nil {
		return
	}
	msg.CreatedAt = m.now()
	if err := m.notifier.Send(context.WithoutCancel(ctx), msg); err != nil {
		m.logger.Warn("notify",
			slog.String("kind", msg.Kind),
			slog.String("destination", msg.Destination),
			slog.Any("error", err))
	}
}
