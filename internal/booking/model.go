package booking

import "time"

// Status is the lifecycle position of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Booking is a customer's reservation of a technician's service. Amount is
// the service price at creation and never changes afterwards.
type Booking struct {
	ID           string
	ServiceID    string
	CustomerID   string
	TechnicianID string
	Amount       int64
	Status       Status
	Date         string
	Time         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// View is a booking with the service details shown in listings.
type View struct {
	Booking
	ServiceName string
	Category    string
}
