package identity

import (
	"time"

	"github.com/fixit-hub/fixit/internal/ledger"
)

// User is a registered marketplace member. Its id doubles as its ledger account id.
type User struct {
	ID           string
	Name         string
	Email        string
	Role         ledger.Role
	PasswordHash []byte
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Registration request structure.
type Registration struct {
	Name     string
	Email    string
	Password string
	Role     ledger.Role
}
