package payout

import (
	"context"

	"github.com/google/uuid"
)

// Disburser represents a connector to the bank rail that pays technicians out.
type Disburser interface {
	Disburse(ctx context.Context, d Disbursement) (Receipt, error)
}

// Disbursement is one approved payout leaving the platform.
type Disbursement struct {
	PayoutID     string
	TechnicianID string
	Amount       int64
}

// Receipt captures the rail's response.
type Receipt struct {
	Reference string
	Status    string
}

// StaticDisburser simulates a bank rail that accepts every transfer.
type StaticDisburser struct{}

// Disburse approves the transfer with a synthetic reference.
func (StaticDisburser) Disburse(_ context.Context, _ Disbursement) (Receipt, error) {
	return Receipt{Reference: uuid.NewString(), Status: "accepted"}, nil
}
