package repository

import (
	"context"
	"sync"
	"time"
)

// RevocationSet is the in-process revocation registry: a concurrent set of
// raw token strings disallowed regardless of cryptographic validity.
// Membership checks sit on the hot request path, so reads take only the
// shared lock.
type RevocationSet struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
}

// NewRevocationSet constructs an empty registry.
func NewRevocationSet() *RevocationSet {
	return &RevocationSet{tokens: make(map[string]struct{})}
}

// Revoke marks the token as disallowed. The ttl is ignored here; entries
// live until Unrevoke, which the sweeper calls once the token has expired.
func (s *RevocationSet) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	s.tokens[token] = struct{}{}
	s.mu.Unlock()
	return nil
}

// IsRevoked reports membership.
func (s *RevocationSet) IsRevoked(ctx context.Context, token string) (bool, error) {
	s.mu.RLock()
	_, ok := s.tokens[token]
	s.mu.RUnlock()
	return ok, nil
}

// Unrevoke removes the token from the registry. Removing an absent token
// is a no-op, which keeps the expiry sweep idempotent.
func (s *RevocationSet) Unrevoke(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	return nil
}

// Len returns the number of revoked tokens currently tracked.
func (s *RevocationSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
