// Package settlement applies the commission split to booking lifecycle events.
//
// Confirmation captures the full booking amount on the platform account.
// Completion moves the technician share out of it; the commission is whatever
// stays behind, so no entry is written for it.
package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/ledger"
)

const (
	ReasonEscrowCapture   = "full booking amount credited"
	ReasonTechnicianShare = "technician share for completed booking"
)

// EventKind names a booking lifecycle event.
type EventKind string

const (
	BookingConfirmed EventKind = "booking_confirmed"
	BookingCompleted EventKind = "booking_completed"
)

// Event is what the booking manager hands to the engine.
type Event struct {
	Kind         EventKind
	BookingID    string
	TechnicianID string
	Amount       int64
}

// Error reports a settlement that could not be applied because the data it
// refers to is inconsistent. It is never retried.
type Error struct {
	Event Event
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("settle %s for booking %s: %v", e.Event.Kind, e.Event.BookingID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Split divides amount into the technician share and the retained commission.
// The technician share is floored to the minor unit; any remainder is retained.
func Split(amount int64, rate decimal.Decimal) (technician, retained int64) {
	share := decimal.NewFromInt(amount).Mul(decimal.NewFromInt(1).Sub(rate)).Floor()
	technician = share.IntPart()
	return technician, amount - technician
}

// Engine turns lifecycle events into ledger batches.
type Engine struct {
	ledger  ledger.Store
	rate    decimal.Decimal
	adminID string
}

// NewEngine builds an engine crediting escrow to adminID.
func NewEngine(store ledger.Store, rate decimal.Decimal, adminID string) (*Engine, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("commission rate %s outside [0,1]: %w", rate, apperr.ErrInvalid)
	}
	if adminID == "" {
		return nil, fmt.Errorf("admin account id is required: %w", apperr.ErrInvalid)
	}
	return &Engine{ledger: store, rate: rate, adminID: adminID}, nil
}

// Rate returns the commission rate.
func (e *Engine) Rate() decimal.Decimal {
	return e.rate
}

// AdminAccountID returns the platform account.
func (e *Engine) AdminAccountID() string {
	return e.adminID
}

// Plan returns the entries an event produces without applying them.
func (e *Engine) Plan(ev Event) ([]ledger.Entry, error) {
	if ev.BookingID == "" {
		return nil, fmt.Errorf("event without booking: %w", apperr.ErrInvalid)
	}
	if ev.Amount <= 0 {
		return nil, fmt.Errorf("booking %s amount %d: %w", ev.BookingID, ev.Amount, apperr.ErrInvalidAmount)
	}

	switch ev.Kind {
	case BookingConfirmed:
		return []ledger.Entry{
			ledger.NewCredit(e.adminID, ev.Amount, ledger.RefBooking, ev.BookingID, ReasonEscrowCapture),
		}, nil
	case BookingCompleted:
		if ev.TechnicianID == "" {
			return nil, fmt.Errorf("completed booking %s without technician: %w", ev.BookingID, apperr.ErrInvalid)
		}
		share, _ := Split(ev.Amount, e.rate)
		if share == 0 {
			return nil, nil
		}
		return []ledger.Entry{
			ledger.NewDebit(e.adminID, share, ledger.RefBooking, ev.BookingID, ReasonTechnicianShare),
			ledger.NewCredit(ev.TechnicianID, share, ledger.RefBooking, ev.BookingID, ReasonTechnicianShare),
		}, nil
	default:
		return nil, fmt.Errorf("unknown settlement event %q: %w", ev.Kind, apperr.ErrInvalid)
	}
}

// Apply settles one event atomically. Missing accounts surface as *Error.
func (e *Engine) Apply(ctx context.Context, ev Event) ([]ledger.Entry, error) {
	entries, err := e.Plan(ev)
	if err != nil {
		return nil, &Error{Event: ev, Err: err}
	}
	if len(entries) == 0 {
		return nil, nil
	}
	applied, err := e.ledger.ApplyEntries(ctx, entries)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, &Error{Event: ev, Err: err}
		}
		return nil, err
	}
	return applied, nil
}
