package cache

import (
	"encoding/json"
	"time"
)

// Entry is one cached query response.
type Entry struct {
	// Data is the serialized response payload.
	Data json.RawMessage `json:"data"`

	// CachedAt is when the entry was written.
	CachedAt time.Time `json:"cached_at"`

	// ExpiresAt bounds staleness; entries past this point read as misses.
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired returns true if the entry has passed its staleness bound.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// TTL returns the time until expiration. Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
