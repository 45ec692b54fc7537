package ledger

import "context"

// SeedBalance credits an account with an opening balance through a regular
// ledger entry, so the balance/entries invariant holds in tests.
func SeedBalance(ctx context.Context, store Store, accountID string, amount int64) error {
	_, err := store.ApplyEntries(ctx, []Entry{NewCredit(accountID, amount, RefSeed, "", "opening balance")})
	return err
}
