package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fixit-hub/fixit/internal/apperr"
)

type inMemoryStore struct {
	mu        sync.RWMutex
	accounts  map[string]Account
	entries   []Entry
	byAccount map[string][]int
	now       func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory ledger store used in
// development mode and unit tests.
func NewInMemory() Store {
	return &inMemoryStore{
		accounts:  make(map[string]Account),
		byAccount: make(map[string][]int),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *inMemoryStore) OpenAccount(_ context.Context, id string, role Role) (Account, error) {
	if id == "" || !role.Valid() {
		return Account{}, fmt.Errorf("open account %q role %q: %w", id, role, apperr.ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if acc, exists := s.accounts[id]; exists {
		if acc.Role != role {
			return Account{}, fmt.Errorf("account %s already opened as %s: %w", id, acc.Role, apperr.ErrConflict)
		}
		return acc, nil
	}
	if role == RoleAdmin {
		for _, acc := range s.accounts {
			if acc.Role == RoleAdmin {
				return Account{}, fmt.Errorf("admin account already exists (%s): %w", acc.ID, apperr.ErrConflict)
			}
		}
	}

	now := s.now()
	acc := Account{ID: id, Role: role, CreatedAt: now, UpdatedAt: now}
	s.accounts[id] = acc
	return acc, nil
}

func (s *inMemoryStore) Account(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return Account{}, apperr.NotFound("account", id)
	}
	return acc, nil
}

// LockAccount relies on txn.Memory serializing units of work.
func (s *inMemoryStore) LockAccount(ctx context.Context, id string) (Account, error) {
	return s.Account(ctx, id)
}

func (s *inMemoryStore) Accounts(_ context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *inMemoryStore) Balance(ctx context.Context, id string) (int64, error) {
	acc, err := s.Account(ctx, id)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

func (s *inMemoryStore) ApplyEntries(_ context.Context, entries []Entry) ([]Entry, error) {
	if err := validateBatch(entries); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[string]int64)
	for _, e := range entries {
		acc, ok := s.accounts[e.AccountID]
		if !ok {
			return nil, apperr.NotFound("account", e.AccountID)
		}
		current[acc.ID] = acc.Balance
	}

	next, err := project(current, entries)
	if err != nil {
		return nil, err
	}

	now := s.now()
	applied := make([]Entry, len(entries))
	for i, e := range entries {
		e.ID = uuid.NewString()
		e.CreatedAt = now
		applied[i] = e
		s.byAccount[e.AccountID] = append(s.byAccount[e.AccountID], len(s.entries))
		s.entries = append(s.entries, e)
	}
	for id, balance := range next {
		acc := s.accounts[id]
		acc.Balance = balance
		acc.UpdatedAt = now
		s.accounts[id] = acc
	}
	return applied, nil
}

func (s *inMemoryStore) Entries(_ context.Context, accountID string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[accountID]; !ok {
		return nil, apperr.NotFound("account", accountID)
	}
	idx := s.byAccount[accountID]
	out := make([]Entry, 0, len(idx))
	for i := len(idx) - 1; i >= 0; i-- {
		out = append(out, s.entries[idx[i]])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *inMemoryStore) EntriesByReference(_ context.Context, referenceID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.ReferenceID == referenceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *inMemoryStore) Reconcile(_ context.Context) ([]Mismatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Mismatch
	for _, id := range ids {
		acc := s.accounts[id]
		var sum int64
		for _, idx := range s.byAccount[id] {
			sum += s.entries[idx].Signed()
		}
		if sum != acc.Balance {
			out = append(out, Mismatch{AccountID: id, Role: acc.Role, Balance: acc.Balance, EntriesSum: sum})
		}
	}
	return out, nil
}
