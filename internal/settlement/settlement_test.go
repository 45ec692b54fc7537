package settlement

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/ledger"
)

var rate = decimal.RequireFromString("0.20")

func newEngine(t *testing.T) (*Engine, ledger.Store, string, string) {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewInMemory()
	admin, tech := uuid.NewString(), uuid.NewString()
	_, err := store.OpenAccount(ctx, admin, ledger.RoleAdmin)
	require.NoError(t, err)
	_, err = store.OpenAccount(ctx, tech, ledger.RoleTechnician)
	require.NoError(t, err)
	engine, err := NewEngine(store, rate, admin)
	require.NoError(t, err)
	return engine, store, admin, tech
}

func TestSplit(t *testing.T) {
	cases := []struct {
		amount     int64
		rate       string
		technician int64
		retained   int64
	}{
		{1000, "0.20", 800, 200},
		{500, "0.20", 400, 100},
		{999, "0.20", 799, 200},
		{1, "0.20", 0, 1},
		{7, "0.15", 5, 2},
		{1000, "0", 1000, 0},
		{1000, "1", 0, 1000},
	}
	for _, tc := range cases {
		tech, kept := Split(tc.amount, decimal.RequireFromString(tc.rate))
		assert.Equal(t, tc.technician, tech, "amount %d rate %s", tc.amount, tc.rate)
		assert.Equal(t, tc.retained, kept, "amount %d rate %s", tc.amount, tc.rate)
		assert.Equal(t, tc.amount, tech+kept)
	}
}

func TestEngineConfirmThenComplete(t *testing.T) {
	engine, store, admin, tech := newEngine(t)
	ctx := context.Background()
	bookingID := uuid.NewString()

	applied, err := engine.Apply(ctx, Event{Kind: BookingConfirmed, BookingID: bookingID, TechnicianID: tech, Amount: 1000})
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, ReasonEscrowCapture, applied[0].Reason)

	adminBal, _ := store.Balance(ctx, admin)
	assert.Equal(t, int64(1000), adminBal)

	applied, err = engine.Apply(ctx, Event{Kind: BookingCompleted, BookingID: bookingID, TechnicianID: tech, Amount: 1000})
	require.NoError(t, err)
	require.Len(t, applied, 2)

	adminBal, _ = store.Balance(ctx, admin)
	techBal, _ := store.Balance(ctx, tech)
	assert.Equal(t, int64(200), adminBal)
	assert.Equal(t, int64(800), techBal)

	entries, err := store.EntriesByReference(ctx, bookingID)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	mismatches, err := ledger.Verify(ctx, store)
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}

func TestEngineRoundingFavoursPlatform(t *testing.T) {
	engine, store, admin, tech := newEngine(t)
	ctx := context.Background()
	bookingID := uuid.NewString()

	_, err := engine.Apply(ctx, Event{Kind: BookingConfirmed, BookingID: bookingID, Amount: 999})
	require.NoError(t, err)
	_, err = engine.Apply(ctx, Event{Kind: BookingCompleted, BookingID: bookingID, TechnicianID: tech, Amount: 999})
	require.NoError(t, err)

	adminBal, _ := store.Balance(ctx, admin)
	techBal, _ := store.Balance(ctx, tech)
	assert.Equal(t, int64(200), adminBal)
	assert.Equal(t, int64(799), techBal)
}

func TestEngineMissingTechnicianIsFatal(t *testing.T) {
	engine, store, admin, _ := newEngine(t)
	ctx := context.Background()
	bookingID := uuid.NewString()

	_, err := engine.Apply(ctx, Event{Kind: BookingConfirmed, BookingID: bookingID, Amount: 1000})
	require.NoError(t, err)

	_, err = engine.Apply(ctx, Event{Kind: BookingCompleted, BookingID: bookingID, TechnicianID: uuid.NewString(), Amount: 1000})
	require.Error(t, err)
	var settleErr *Error
	require.ErrorAs(t, err, &settleErr)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	adminBal, _ := store.Balance(ctx, admin)
	assert.Equal(t, int64(1000), adminBal)
}

func TestEngineCompleteWithoutEscrowIsRejected(t *testing.T) {
	engine, store, _, tech := newEngine(t)
	ctx := context.Background()

	_, err := engine.Apply(ctx, Event{Kind: BookingCompleted, BookingID: uuid.NewString(), TechnicianID: tech, Amount: 1000})
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	techBal, _ := store.Balance(ctx, tech)
	assert.Zero(t, techBal)
}

func TestEngineRejectsBadEvents(t *testing.T) {
	engine, _, _, tech := newEngine(t)
	ctx := context.Background()

	_, err := engine.Apply(ctx, Event{Kind: BookingConfirmed, BookingID: "b", Amount: 0})
	assert.ErrorIs(t, err, apperr.ErrInvalidAmount)

	_, err = engine.Apply(ctx, Event{Kind: "refunded", BookingID: "b", TechnicianID: tech, Amount: 10})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = NewEngine(ledger.NewInMemory(), decimal.RequireFromString("1.5"), "admin")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}
