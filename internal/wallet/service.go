// Package wallet is the read side of the ledger for account owners.
package wallet

import (
	"context"
	"time"

	"github.com/fixit-hub/fixit/internal/ledger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Service exposes wallet views backed by the ledger.
type Service struct {
	ledger ledger.Store
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store) *Service {
	return &Service{ledger: store}
}

// Balance returns the ledger balance for the account.
func (s *Service) Balance(ctx context.Context, accountID string) (Balance, error) {
	acc, err := s.ledger.Account(ctx, accountID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{AccountID: acc.ID, Role: acc.Role, Amount: acc.Balance, AsOf: time.Now().UTC()}, nil
}

// History returns the most recent entries of the account, newest first.
func (s *Service) History(ctx context.Context, accountID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	entries, err := s.ledger.Entries(ctx, accountID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(entries))
	for _, e := range entries {
		out = append(out, Transaction{
			ID:            e.ID,
			Direction:     e.Direction,
			Amount:        e.Amount,
			ReferenceKind: e.ReferenceKind,
			ReferenceID:   e.ReferenceID,
			Reason:        e.Reason,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out, nil
}

// Verify recomputes every balance from its entries and returns the accounts
// whose stored balance disagrees.
func (s *Service) Verify(ctx context.Context) ([]ledger.Mismatch, error) {
	return ledger.Verify(ctx, s.ledger)
}
