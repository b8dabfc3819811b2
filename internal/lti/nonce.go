package lti

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// nonceTTL bounds how long a nonce stays consumed. Tokens older than
	// this fail expiry checks anyway.
	nonceTTL = time.Hour

	nonceSweepInterval = 10 * time.Minute
)

// NonceStore tracks consumed nonces. Consumption is a single atomic
// check-and-set, so two concurrent requests presenting the same nonce cannot
// both pass.
type NonceStore struct {
	cache *gocache.Cache
}

// NewNonceStore creates a nonce store with the default retention.
func NewNonceStore() *NonceStore {
	return &NonceStore{
		cache: gocache.New(nonceTTL, nonceSweepInterval),
	}
}

// Consume marks a nonce as used. The second consumption of the same nonce
// fails with ErrNonceReplay.
func (s *NonceStore) Consume(nonce string) error {
	// Add is atomic create-if-absent; it errors when the key exists.
	if err := s.cache.Add(nonce, struct{}{}, gocache.DefaultExpiration); err != nil {
		return ErrNonceReplay
	}

	return nil
}
