// Package identity registers marketplace members and verifies their credentials.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/ledger"
	"github.com/fixit-hub/fixit/internal/txn"
)

const minPasswordLength = 8

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", apperr.ErrUnauthorized)

// Service manages identity lifecycle.
type Service struct {
	repo   Repository
	ledger ledger.Store
	tx     txn.Transactor
	now    func() time.Time
}

// NewService creates a new identity service. Every registered user gets a
// ledger account under the same id.
func NewService(repo Repository, store ledger.Store, tx txn.Transactor) *Service {
	return &Service{repo: repo, ledger: store, tx: tx, now: func() time.Time { return time.Now().UTC() }}
}

// Register creates a customer or technician and opens their ledger account.
// Admins are never self-registered.
func (s *Service) Register(ctx context.Context, reg Registration) (User, error) {
	if reg.Role != ledger.RoleCustomer && reg.Role != ledger.RoleTechnician {
		return User{}, fmt.Errorf("role %q cannot self-register: %w", reg.Role, apperr.ErrForbidden)
	}
	return s.create(ctx, uuid.NewString(), reg)
}

// EnsureAdmin provisions the platform account and its operator login if they
// do not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, id, email, password string) (User, error) {
	if existing, err := s.repo.FindByID(ctx, id); err == nil {
		if existing.Role != ledger.RoleAdmin {
			return User{}, fmt.Errorf("user %s is %s, not admin: %w", id, existing.Role, apperr.ErrConflict)
		}
		if _, err := s.ledger.OpenAccount(ctx, id, ledger.RoleAdmin); err != nil {
			return User{}, err
		}
		return existing, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return User{}, err
	}
	return s.create(ctx, id, Registration{Name: "Platform", Email: email, Password: password, Role: ledger.RoleAdmin})
}

func (s *Service) create(ctx context.Context, id string, reg Registration) (User, error) {
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, fmt.Errorf("email %q: %w", reg.Email, apperr.ErrInvalid)
	}
	if len(reg.Password) < minPasswordLength {
		return User{}, fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, apperr.ErrInvalid)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           id,
		Name:         strings.TrimSpace(reg.Name),
		Email:        email,
		Role:         reg.Role,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindByEmail(ctx, email); err == nil {
			return fmt.Errorf("email %s already registered: %w", email, apperr.ErrConflict)
		}
		if _, err := s.ledger.OpenAccount(ctx, user.ID, user.Role); err != nil {
			return err
		}
		return s.repo.Create(ctx, user)
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate verifies credentials and records the login time.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.repo.TouchLogin(ctx, user.ID, now); err != nil {
		return User{}, err
	}
	user.LastLogin = &now
	return user, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

