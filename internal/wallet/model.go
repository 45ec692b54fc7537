package wallet

import (
	"time"

	"github.com/fixit-hub/fixit/internal/ledger"
)

// Balance is the live, net position of an account.
type Balance struct {
	AccountID string
	Role      ledger.Role
	Amount    int64
	AsOf      time.Time
}

// Transaction is one ledger entry as shown to its owner.
type Transaction struct {
	ID            string
	Direction     ledger.Direction
	Amount        int64
	ReferenceKind ledger.ReferenceKind
	ReferenceID   string
	Reason        string
	CreatedAt     time.Time
}
