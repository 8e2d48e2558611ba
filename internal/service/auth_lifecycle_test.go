package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/authgate/internal/models"
	"github.com/noah-isme/authgate/internal/repository"
	appErrors "github.com/noah-isme/authgate/pkg/errors"
)

func (m *mockTokenStore) FindByExpiryBefore(ctx context.Context, cutoff time.Time) ([]models.ActiveToken, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []models.ActiveToken
	for _, rec := range m.records {
		if rec.ExpiresAt.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Full token lifecycle: issue, verify mid-life, revoke, reject while the
// signature is still valid, then sweep once expiry passes.
func TestTokenLifecycleRevocationThenSweep(t *testing.T) {
	users := &mockUserRepo{user: &models.User{
		ID:           42,
		Email:        "user@example.com",
		PasswordHash: hashPassword(t, "secret"),
		Active:       true,
	}}
	store := newMockTokenStore()
	registry := repository.NewRevocationSet()

	tokens, now := newTestTokenService(t, time.Hour)
	authSvc := NewAuthService(users, store, registry, tokens, nil, nil)
	authSvc.now = func() time.Time { return *now }
	sweeper := NewSweeperService(store, registry, time.Hour, nil, nil)
	sweeper.now = func() time.Time { return *now }

	ctx := context.Background()

	res, err := authSvc.Login(ctx, models.LoginRequest{Email: "user@example.com", Password: "secret"})
	require.NoError(t, err)

	// T0+1800s: still verifies.
	*now = now.Add(30 * time.Minute)
	claims, err := authSvc.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)

	// Revoked at T0+1800s; revocation wins despite valid signature/expiry.
	// The store record is kept so the sweeper owns the registry cleanup.
	require.NoError(t, registry.Revoke(ctx, res.AccessToken, claims.ExpiresAt.Time.Sub(*now)))
	_, err = authSvc.Authenticate(ctx, res.AccessToken)
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrTokenRevoked))

	// Before natural expiry the sweep must not touch the entry.
	cleaned, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, cleaned)
	require.Equal(t, 1, registry.Len())

	// T0+3601s: sweep drops the record and the revocation entry.
	*now = now.Add(30*time.Minute + time.Second)
	cleaned, err = sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleaned)
	assert.Empty(t, store.records)
	assert.Equal(t, 0, registry.Len())

	// The token stays rejected, now on expiry instead of revocation.
	_, err = authSvc.Authenticate(ctx, res.AccessToken)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrTokenInvalid))
}
