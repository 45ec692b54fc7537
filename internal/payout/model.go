package payout

import "time"

// Status of a payout request. Pending moves once to approved or rejected.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Request is a technician asking to withdraw part of their balance.
type Request struct {
	ID              string
	TechnicianID    string
	Amount          int64
	Status          Status
	DisbursementRef string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}
