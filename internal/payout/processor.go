// Package payout lets technicians withdraw their balance once an admin approves.
//
// A request reserves nothing: the balance is checked when it is made and again,
// under lock, when it is approved.
package payout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/ledger"
	"github.com/fixit-hub/fixit/internal/notification"
	"github.com/fixit-hub/fixit/internal/txn"
)

const ReasonDisbursed = "payout disbursed to bank"

// Processor validates and disburses payout requests.
type Processor struct {
	repo      Repository
	ledger    ledger.Store
	tx        txn.Transactor
	disburser Disburser
	notifier  notification.Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// NewProcessor wires a payout processor. A nil disburser falls back to StaticDisburser.
func NewProcessor(repo Repository, store ledger.Store, tx txn.Transactor, disburser Disburser,
	notifier notification.Notifier, logger *slog.Logger) *Processor {
	if disburser == nil {
		disburser = StaticDisburser{}
	}
	return &Processor{
		repo:      repo,
		ledger:    store,
		tx:        tx,
		disburser: disburser,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RequestPayout records a pending request if the technician currently holds
// at least amount.
func (p *Processor) RequestPayout(ctx context.Context, technicianID string, amount int64) (Request, error) {
	if amount <= 0 {
		return Request{}, fmt.Errorf("payout amount %d: %w", amount, apperr.ErrInvalidAmount)
	}
	acc, err := p.ledger.Account(ctx, technicianID)
	if err != nil {
		return Request{}, err
	}
	if acc.Role != ledger.RoleTechnician {
		return Request{}, fmt.Errorf("account %s is %s: %w", acc.ID, acc.Role, apperr.ErrForbidden)
	}
	if amount > acc.Balance {
		return Request{}, &apperr.InsufficientFundsError{AccountID: acc.ID, Available: acc.Balance, Requested: amount}
	}

	req := Request{
		ID:           uuid.NewString(),
		TechnicianID: technicianID,
		Amount:       amount,
		Status:       StatusPending,
		CreatedAt:    p.now(),
	}
	if err := p.repo.Create(ctx, req); err != nil {
		return Request{}, err
	}
	p.logger.Info("payout requested", slog.String("payout_id", req.ID), slog.Int64("amount", amount))
	return req, nil
}

// ApprovePayout re-checks the balance under lock, disburses, debits the
// technician and marks the request approved.
func (p *Processor) ApprovePayout(ctx context.Context, payoutID string) (Request, error) {
	var req Request
	err := p.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		req, err = p.lockPending(ctx, payoutID)
		if err != nil {
			return err
		}
		acc, err := p.ledger.LockAccount(ctx, req.TechnicianID)
		if err != nil {
			return err
		}
		if acc.Balance < req.Amount {
			return &apperr.InsufficientFundsError{AccountID: acc.ID, Available: acc.Balance, Requested: req.Amount}
		}
		receipt, err := p.disburser.Disburse(ctx, Disbursement{PayoutID: req.ID, TechnicianID: req.TechnicianID, Amount: req.Amount})
		if err != nil {
			return fmt.Errorf("disburse payout %s: %w", req.ID, err)
		}
		if _, err := p.ledger.ApplyEntries(ctx, []ledger.Entry{
			ledger.NewDebit(req.TechnicianID, req.Amount, ledger.RefPayout, req.ID, ReasonDisbursed),
		}); err != nil {
			return err
		}
		now := p.now()
		req.Status = StatusApproved
		req.DisbursementRef = receipt.Reference
		req.ProcessedAt = &now
		return p.repo.Update(ctx, req)
	})
	if err != nil {
		return Request{}, err
	}

	p.logger.Info("payout approved", slog.String("payout_id", req.ID), slog.String("reference", req.DisbursementRef))
	p.notify(ctx, req, fmt.Sprintf("Your payout of %d was sent to your bank", req.Amount))
	return req, nil
}

// RejectPayout closes a pending request without touching the ledger.
func (p *Processor) RejectPayout(ctx context.Context, payoutID string) (Request, error) {
	var req Request
	err := p.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		req, err = p.lockPending(ctx, payoutID)
		if err != nil {
			return err
		}
		now := p.now()
		req.Status = StatusRejected
		req.ProcessedAt = &now
		return p.repo.Update(ctx, req)
	})
	if err != nil {
		return Request{}, err
	}

	p.logger.Info("payout rejected", slog.String("payout_id", req.ID))
	p.notify(ctx, req, fmt.Sprintf("Your payout request of %d was rejected", req.Amount))
	return req, nil
}

// Pending lists requests awaiting a decision, oldest first.
func (p *Processor) Pending(ctx context.Context) ([]Request, error) {
	return p.repo.ListByStatus(ctx, StatusPending)
}

// ByTechnician lists a technician's requests, newest first.
func (p *Processor) ByTechnician(ctx context.Context, technicianID string) ([]Request, error) {
	return p.repo.ListByTechnician(ctx, technicianID)
}

func (p *Processor) lockPending(ctx context.Context, payoutID string) (Request, error) {
	req, err := p.repo.GetForUpdate(ctx, payoutID)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusPending {
		return Request{}, fmt.Errorf("payout %s is %s: %w", req.ID, req.Status, apperr.ErrInvalidState)
	}
	return req, nil
}

func (p *Processor) notify(ctx context.Context, req Request, body string) {
	if p.notifier == nil {
		return
	}
	err := p.notifier.Send(context.WithoutCancel(ctx), notification.Message{
		Kind:        notification.KindPayoutStatusChanged,
		Destination: req.TechnicianID,
		Body:        body,
		Data:        map[string]string{"payout_id": req.ID, "status": string(req.Status)},
		CreatedAt:   p.now(),
	})
	if err != nil {
		p.logger.Warn("notify", slog.String("payout_id", req.ID), slog.Any("error", err))
	}
}
