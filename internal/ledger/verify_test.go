package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyReportsDrift(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	admin, tech := openAccounts(t, store)
	require.NoError(t, SeedBalance(ctx, store, admin, 1_000))

	mem := store.(*inMemoryStore)
	mem.mu.Lock()
	acc := mem.accounts[tech]
	acc.Balance = 42
	mem.accounts[tech] = acc
	mem.mu.Unlock()

	mismatches, err := Verify(ctx, store)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, tech, mismatches[0].AccountID)
	assert.Equal(t, int64(42), mismatches[0].Balance)
	assert.Zero(t, mismatches[0].EntriesSum)
}

func TestVerifyIsConsistentUnderConcurrentWrites(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	ids := make([]string, 50)
	for i := range ids {
		ids[i] = uuid.NewString()
		_, err := store.OpenAccount(ctx, ids[i], RoleTechnician)
		require.NoError(t, err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			for _, id := range ids {
				if err := SeedBalance(ctx, store, id, 10); err != nil {
					t.Errorf("seed: %v", err)
					return
				}
			}
		}
	}()

	for i := 0; i < 500; i++ {
		mismatches, err := Verify(ctx, store)
		require.NoError(t, err)
		require.Empty(t, mismatches, "run %d", i)
	}
	close(done)
	wg.Wait()
}
