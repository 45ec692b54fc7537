package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/ledger"
)

func TestBalanceAndHistory(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store)
	ctx := context.Background()

	tech := uuid.NewString()
	_, err := store.OpenAccount(ctx, tech, ledger.RoleTechnician)
	require.NoError(t, err)
	require.NoError(t, ledger.SeedBalance(ctx, store, tech, 2_500))
	_, err = store.ApplyEntries(ctx, []ledger.Entry{
		ledger.NewDebit(tech, 500, ledger.RefPayout, "p-1", "payout disbursed to bank"),
	})
	require.NoError(t, err)

	balance, err := svc.Balance(ctx, tech)
	require.NoError(t, err)
	assert.Equal(t, int64(2_000), balance.Amount)
	assert.Equal(t, ledger.RoleTechnician, balance.Role)

	history, err := svc.History(ctx, tech, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ledger.Debit, history[0].Direction)
	assert.Equal(t, "p-1", history[0].ReferenceID)

	history, err = svc.History(ctx, tech, 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = svc.Balance(ctx, uuid.NewString())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	mismatches, err := svc.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}
