package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/fixit-hub/fixit/internal/apperr"
)

// Role is the marketplace role owning an account.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleTechnician, RoleAdmin:
		return true
	default:
		return false
	}
}

// Direction is the side of a ledger entry.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// ReferenceKind names what caused an entry.
type ReferenceKind string

const (
	RefNone    ReferenceKind = ""
	RefBooking ReferenceKind = "booking"
	RefPayout  ReferenceKind = "payout"
	RefSeed    ReferenceKind = "seed"
)

// Account holds a running balance in currency minor units. It is never negative.
type Account struct {
	ID        string
	Role      Role
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry is one signed movement against one account. Entries are append-only.
type Entry struct {
	ID            string
	AccountID     string
	Direction     Direction
	Amount        int64
	ReferenceKind ReferenceKind
	ReferenceID   string
	Reason        string
	CreatedAt     time.Time
}

// Signed returns the effect of the entry on its account balance.
func (e Entry) Signed() int64 {
	if e.Direction == Debit {
		return -e.Amount
	}
	return e.Amount
}

// NewCredit builds a credit entry.
func NewCredit(accountID string, amount int64, kind ReferenceKind, refID, reason string) Entry {
	return Entry{AccountID: accountID, Direction: Credit, Amount: amount, ReferenceKind: kind, ReferenceID: refID, Reason: reason}
}

// NewDebit builds a debit entry.
func NewDebit(accountID string, amount int64, kind ReferenceKind, refID, reason string) Entry {
	return Entry{AccountID: accountID, Direction: Debit, Amount: amount, ReferenceKind: kind, ReferenceID: refID, Reason: reason}
}

// Store owns accounts and the entry log. ApplyEntries is the only way balances
// change: every entry in a batch is committed, or none is.
type Store interface {
	// OpenAccount creates the account if missing. Re-opening with the same role
	// is a no-op; a different role is a conflict.
	OpenAccount(ctx context.Context, id string, role Role) (Account, error)
	Account(ctx context.Context, id string) (Account, error)
	// LockAccount loads the account and holds it until the surrounding unit of
	// work ends, so a balance check stays valid until the entries are applied.
	LockAccount(ctx context.Context, id string) (Account, error)
	Accounts(ctx context.Context) ([]Account, error)
	Balance(ctx context.Context, id string) (int64, error)
	// ApplyEntries validates and commits the batch atomically, returning the
	// entries with their ids and timestamps assigned.
	ApplyEntries(ctx context.Context, entries []Entry) ([]Entry, error)
	// Entries returns an account's entries newest first; limit <= 0 means all.
	Entries(ctx context.Context, accountID string, limit int) ([]Entry, error)
	EntriesByReference(ctx context.Context, referenceID string) ([]Entry, error)
	// Reconcile compares every balance with the sum of its entries, reading
	// both from one consistent snapshot.
	Reconcile(ctx context.Context) ([]Mismatch, error)
}

func validateBatch(entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("empty ledger batch: %w", apperr.ErrInvalid)
	}
	for _, e := range entries {
		if e.AccountID == "" {
			return fmt.Errorf("ledger entry without account: %w", apperr.ErrInvalid)
		}
		if e.Direction != Credit && e.Direction != Debit {
			return fmt.Errorf("ledger entry direction %q: %w", e.Direction, apperr.ErrInvalid)
		}
		if e.Amount <= 0 {
			return fmt.Errorf("ledger entry amount %d: %w", e.Amount, apperr.ErrInvalidAmount)
		}
		if e.Reason == "" {
			return fmt.Errorf("ledger entry without reason: %w", apperr.ErrInvalid)
		}
	}
	return nil
}

// project computes post-batch balances and rejects any that would go negative.
// Accounts are checked in batch order, so the first offending entry is reported.
func project(balances map[string]int64, entries []Entry) (map[string]int64, error) {
	next := make(map[string]int64, len(balances))
	for id, b := range balances {
		next[id] = b
	}
	for _, e := range entries {
		next[e.AccountID] += e.Signed()
	}
	for _, e := range entries {
		if next[e.AccountID] < 0 {
			return nil, &apperr.InsufficientFundsError{
				AccountID: e.AccountID,
				Available: balances[e.AccountID],
				Requested: balances[e.AccountID] - next[e.AccountID],
			}
		}
	}
	return next, nil
}
