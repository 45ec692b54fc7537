package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixit-hub/fixit/internal/booking"
	"github.com/fixit-hub/fixit/internal/catalog"
)

var rate = decimal.RequireFromString("0.20")

type fixture struct {
	bookings booking.Repository
	services catalog.Repository
}

func newFixture() *fixture {
	return &fixture{bookings: booking.NewMemoryRepository(), services: catalog.NewMemoryRepository()}
}

func (f *fixture) service(t *testing.T, category string) string {
	t.Helper()
	svc := catalog.Service{ID: uuid.NewString(), Name: category + " job", Category: category, Price: 1, Location: "x", Available: true, CreatedAt: time.Now()}
	require.NoError(t, f.services.Create(context.Background(), svc))
	return svc.ID
}

func (f *fixture) booking(t *testing.T, serviceID string, amount int64, status booking.Status) {
	t.Helper()
	require.NoError(t, f.bookings.Create(context.Background(), booking.Booking{
		ID: uuid.NewString(), ServiceID: serviceID, Amount: amount, Status: status, CreatedAt: time.Now(),
	}))
}

func TestEarningsAndCategoryTieBreak(t *testing.T) {
	f := newFixture()
	f.booking(t, f.service(t, "plumbing"), 500, booking.StatusCompleted)
	f.booking(t, f.service(t, "electrical"), 1500, booking.StatusCompleted)
	f.booking(t, f.service(t, "painting"), 9000, booking.StatusConfirmed)

	agg := NewAggregator(f.bookings, f.services, rate)
	ctx := context.Background()

	e, err := agg.Earnings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, e.CompletedBookings)
	assert.Equal(t, int64(2000), e.TotalRevenue)
	assert.Equal(t, int64(400), e.AdminEarnings)
	assert.Equal(t, int64(1600), e.TechnicianEarnings)

	stats, err := agg.MostBookedCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, "plumbing", stats.Category)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, []CategoryCount{{"plumbing", 1}, {"electrical", 1}}, stats.Counts)
}

func TestMostBookedCategoryCounts(t *testing.T) {
	f := newFixture()
	plumbing, electrical := f.service(t, "plumbing"), f.service(t, "electrical")
	f.booking(t, plumbing, 100, booking.StatusCompleted)
	f.booking(t, electrical, 100, booking.StatusCompleted)
	f.booking(t, electrical, 100, booking.StatusCompleted)
	f.booking(t, uuid.NewString(), 100, booking.StatusCompleted)

	stats, err := NewAggregator(f.bookings, f.services, rate).MostBookedCategory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "electrical", stats.Category)
	assert.Equal(t, 2, stats.Count)
}

func TestEmptyHistory(t *testing.T) {
	f := newFixture()
	f.booking(t, f.service(t, "plumbing"), 500, booking.StatusConfirmed)
	agg := NewAggregator(f.bookings, f.services, rate)
	ctx := context.Background()

	e, err := agg.Earnings(ctx)
	require.NoError(t, err)
	assert.Zero(t, e.TotalRevenue)
	assert.Zero(t, e.AdminEarnings)

	stats, err := agg.MostBookedCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, NoCategory, stats.Category)
	assert.Empty(t, stats.Counts)
}
