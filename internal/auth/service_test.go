package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/config"
	"github.com/fixit-hub/fixit/internal/identity"
	"github.com/fixit-hub/fixit/internal/ledger"
	"github.com/fixit-hub/fixit/internal/txn"
)

func newAuth(t *testing.T) (*Service, identity.User) {
	t.Helper()
	repo := identity.NewMemoryRepository()
	ids := identity.NewService(repo, ledger.NewInMemory(), txn.NewMemory())
	user, err := ids.Register(context.Background(), identity.Registration{
		Name: "Tariq", Email: "tariq@fixit.test", Password: "correct-horse", Role: ledger.RoleTechnician,
	})
	require.NoError(t, err)

	svc := NewService(config.Config{
		AppName:         "Fixit",
		JWTSecret:       "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}, repo)
	return svc, user
}

func TestLoginIssuesVerifiableTokens(t *testing.T) {
	svc, user := newAuth(t)
	ctx := context.Background()

	pair, err := svc.Login(user)
	require.NoError(t, err)
	assert.EqualValues(t, 60, pair.ExpiresIn)

	userID, role, err := svc.Principal(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, ledger.RoleTechnician, role)

	_, err = svc.Verify(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	access, _, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, access)
	assert.NoError(t, err)

	_, _, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	svc, user := newAuth(t)
	pair, err := svc.Login(user)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.Verify(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogoutRevokesOutstandingTokens(t *testing.T) {
	svc, user := newAuth(t)
	ctx := context.Background()
	pair, err := svc.Login(user)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, user.ID))

	_, err = svc.Verify(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTamperedTokenIsRejected(t *testing.T) {
	svc, user := newAuth(t)
	pair, err := svc.Login(user)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), pair.AccessToken+"x")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Verify(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
