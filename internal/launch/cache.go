package launch

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/storage"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/lti"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/uniuri"
)

// ErrLaunchNotFound is returned when no cached launch exists for the id
// within the session.
var ErrLaunchNotFound = errors.New("cached launch not found")

const launchIDLength = 32

// Cache holds validated launch claims across the redirect chain of a
// multi-step flow (account choice, login round-trip, confirmation). Entries
// are namespaced under the owning session so a launch id can never be
// replayed from a different browser, and they expire with the session rather
// than a TTL of their own. Callers purge entries once the claims are no
// longer needed.
type Cache struct {
	storage storage.Storage
	expiry  time.Duration
}

// NewCache creates a launch cache on the given storage backend. expiry should
// match the session expiry.
func NewCache(st storage.Storage, expiry time.Duration) *Cache {
	return &Cache{
		storage: st,
		expiry:  expiry,
	}
}

// key namespaces a cache entry under its session.
func key(sessionID, launchID string) string {
	return "launch:" + sessionID + ":" + launchID
}

// cachedLaunch is the wire form of a cached launch. Issuer, subject and
// client id live on the envelope because the claims struct excludes them
// from JSON on purpose.
type cachedLaunch struct {
	Issuer   string            `json:"issuer"`
	Subject  string            `json:"subject"`
	ClientID string            `json:"client_id"`
	Claims   *lti.LaunchClaims `json:"claims"`
}

// Store caches validated claims and returns the opaque launch id to pass
// through redirects.
func (c *Cache) Store(sessionID string, claims *lti.LaunchClaims) (string, error) {
	launchID := uniuri.NewLen(launchIDLength)

	out, err := json.Marshal(cachedLaunch{
		Issuer:   claims.Issuer,
		Subject:  claims.Subject,
		ClientID: claims.ClientID,
		Claims:   claims,
	})
	if err != nil {
		return "", err
	}

	if err := c.storage.Set(key(sessionID, launchID), out, c.expiry); err != nil {
		return "", err
	}

	return launchID, nil
}

// Retrieve returns the cached claims for a launch id. Retrieval does not
// consume the entry; redirect chains may read it several times before the
// final Purge.
func (c *Cache) Retrieve(sessionID, launchID string) (*lti.LaunchClaims, error) {
	raw, err := c.storage.Get(key(sessionID, launchID))
	if err != nil || len(raw) == 0 {
		return nil, ErrLaunchNotFound
	}

	var entry cachedLaunch
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}

	claims := entry.Claims
	claims.Issuer = entry.Issuer
	claims.Subject = entry.Subject
	claims.ClientID = entry.ClientID

	return claims, nil
}

// Purge removes a cached launch once its claims are no longer needed.
func (c *Cache) Purge(sessionID, launchID string) error {
	return c.storage.Delete(key(sessionID, launchID))
}
