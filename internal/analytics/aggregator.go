// Package analytics derives revenue and category figures from completed
// bookings. Its numbers are gross historical splits and differ from live
// ledger balances once payouts have been made.
package analytics

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/booking"
	"github.com/fixit-hub/fixit/internal/catalog"
	"github.com/fixit-hub/fixit/internal/settlement"
)

// NoCategory is reported when there are no completed bookings.
const NoCategory = "no category"

// BookingSource lists bookings by status in creation order.
type BookingSource interface {
	ListByStatus(ctx context.Context, status booking.Status) ([]booking.Booking, error)
}

// ServiceLookup resolves a booking's service.
type ServiceLookup interface {
	Get(ctx context.Context, id string) (catalog.Service, error)
}

// Earnings is the gross split of all completed bookings.
type Earnings struct {
	CompletedBookings  int
	TotalRevenue       int64
	AdminEarnings      int64
	TechnicianEarnings int64
	CommissionRate     decimal.Decimal
}

// CategoryCount is the number of completed bookings in one category.
type CategoryCount struct {
	Category string
	Count    int
}

// CategoryStats names the most booked category and lists every count in the
// order categories were first seen.
type CategoryStats struct {
	Category string
	Count    int
	Counts   []CategoryCount
}

// Aggregator is read-only.
type Aggregator struct {
	bookings BookingSource
	services ServiceLookup
	rate     decimal.Decimal
}

// NewAggregator builds an aggregator using the settlement commission rate.
func NewAggregator(bookings BookingSource, services ServiceLookup, rate decimal.Decimal) *Aggregator {
	return &Aggregator{bookings: bookings, services: services, rate: rate}
}

// Earnings sums completed bookings and splits the total with the same rule as
// settlement: the technician side is floored, the remainder is the platform's.
func (a *Aggregator) Earnings(ctx context.Context) (Earnings, error) {
	completed, err := a.bookings.ListByStatus(ctx, booking.StatusCompleted)
	if err != nil {
		return Earnings{}, err
	}
	var total int64
	for _, b := range completed {
		total += b.Amount
	}
	technician, admin := settlement.Split(total, a.rate)
	return Earnings{
		CompletedBookings:  len(completed),
		TotalRevenue:       total,
		AdminEarnings:      admin,
		TechnicianEarnings: technician,
		CommissionRate:     a.rate,
	}, nil
}

// MostBookedCategory counts completed bookings per service category. Ties go
// to the category seen first.
func (a *Aggregator) MostBookedCategory(ctx context.Context) (CategoryStats, error) {
	completed, err := a.bookings.ListByStatus(ctx, booking.StatusCompleted)
	if err != nil {
		return CategoryStats{}, err
	}

	index := make(map[string]int)
	var counts []CategoryCount
	categories := make(map[string]string)
	for _, b := range completed {
		category, ok := categories[b.ServiceID]
		if !ok {
			svc, err := a.services.Get(ctx, b.ServiceID)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					continue
				}
				return CategoryStats{}, err
			}
			category = svc.Category
			categories[b.ServiceID] = category
		}
		i, seen := index[category]
		if !seen {
			i = len(counts)
			index[category] = i
			counts = append(counts, CategoryCount{Category: category})
		}
		counts[i].Count++
	}

	stats := CategoryStats{Category: NoCategory, Counts: counts}
	for _, c := range counts {
		if c.Count > stats.Count {
			stats.Category = c.Category
			stats.Count = c.Count
		}
	}
	return stats, nil
}
