package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T, ttl time.Duration) (*TokenService, *time.Time) {
	svc, err := NewTokenService(TokenConfig{
		SigningKey: []byte("test-signing-key"),
		TTL:        ttl,
		Issuer:     "authgate-test",
	})
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := &now
	svc.now = func() time.Time { return *current }
	return svc, current
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	svc, _ := newTestTokenService(t, time.Hour)

	token, expiresAt, err := svc.Issue("user@example.com", 42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "user@example.com", claims.Subject)
	assert.True(t, expiresAt.After(claims.IssuedAt.Time))
}

func TestVerifyBeforeAndAfterExpiry(t *testing.T) {
	svc, now := newTestTokenService(t, time.Hour)

	token, _, err := svc.Issue("user@example.com", 42)
	require.NoError(t, err)

	*now = now.Add(30 * time.Minute)
	_, err = svc.Verify(token)
	assert.NoError(t, err, "token is still inside its lifetime")

	*now = now.Add(30*time.Minute + time.Second)
	_, err = svc.Verify(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	svc, _ := newTestTokenService(t, time.Hour)

	other, err := NewTokenService(TokenConfig{SigningKey: []byte("another-key"), TTL: time.Hour})
	require.NoError(t, err)

	token, _, err := other.Issue("user@example.com", 42)
	require.NoError(t, err)

	_, err = svc.Verify(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jwt.ErrTokenSignatureInvalid))
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	svc, _ := newTestTokenService(t, time.Hour)

	_, err := svc.Verify("not-a-token")
	assert.Error(t, err)
}

func TestVerifyRejectsWrongSigningMethod(t *testing.T) {
	svc, _ := newTestTokenService(t, time.Hour)

	// alg=none token with a plausible payload.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 42})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.Error(t, err)
}

func TestNewTokenServiceValidation(t *testing.T) {
	_, err := NewTokenService(TokenConfig{SigningKey: nil, TTL: time.Hour})
	assert.Error(t, err)

	_, err = NewTokenService(TokenConfig{SigningKey: []byte("k"), TTL: 0})
	assert.Error(t, err)
}
