// Package notification delivers fire-and-forget notices to connected users.
//
// Senders never fail a business operation because of a notification: callers
// log the returned error and move on.
package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	// KindBookingCreated tells a technician about a new booking.
	KindBookingCreated = "booking_created"
	// KindBookingStatusChanged tells a customer their booking moved on.
	KindBookingStatusChanged = "booking_status_changed"
	// KindPayoutStatusChanged tells a technician their payout was decided.
	KindPayoutStatusChanged = "payout_status_changed"
)

// Message describes a notification payload.
type Message struct {
	Kind        string            `json:"kind"`
	Destination string            `json:"destination"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

// Send fans the message out.
func (m Multi) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
