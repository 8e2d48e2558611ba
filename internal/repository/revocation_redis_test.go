package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisSet(t *testing.T) (*RedisRevocationSet, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRevocationSet(client), mr
}

func TestRedisRevocationMembership(t *testing.T) {
	set, _ := newRedisSet(t)
	ctx := context.Background()

	revoked, err := set.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, set.Revoke(ctx, "tok", time.Hour))
	revoked, err = set.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, set.Unrevoke(ctx, "tok"))
	revoked, err = set.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisRevocationEntryExpires(t *testing.T) {
	set, mr := newRedisSet(t)
	ctx := context.Background()

	require.NoError(t, set.Revoke(ctx, "tok", 30*time.Minute))

	mr.FastForward(31 * time.Minute)

	revoked, err := set.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked, "entry should expire with the token's remaining lifetime")
}

func TestRedisRevocationLookupFailure(t *testing.T) {
	set, mr := newRedisSet(t)
	mr.Close()

	_, err := set.IsRevoked(context.Background(), "tok")
	assert.Error(t, err)
}
