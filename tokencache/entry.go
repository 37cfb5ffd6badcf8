package tokencache

import "time"

// State is the freshness classification of an identity's cached token.
type State uint8

const (
	// StateAbsent means no entry is cached for the identity.
	StateAbsent State = iota
	// StateFresh means the cached token may be returned unchanged.
	StateFresh
	// StateStale means the token is still valid but inside the refresh buffer.
	StateStale
	// StateExpired means the token has reached its expiry.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale_but_expiring_soon"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Entry is the cached record for one identity. Values handed to callers are
// copies; mutating them has no effect on the cache.
type Entry struct {
	Token     string
	Subject   string
	TokenID   string
	CreatedAt time.Time
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsExpired reports now >= ExpiresAt.
func (e Entry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// IsAboutToExpire reports now + buffer >= ExpiresAt.
func (e Entry) IsAboutToExpire(now time.Time, buffer time.Duration) bool {
	return !now.Add(buffer).Before(e.ExpiresAt)
}

// Remaining returns the time left before expiry, never negative.
func (e Entry) Remaining(now time.Time) time.Duration {
	if d := e.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// RemainingSeconds returns Remaining truncated to whole seconds.
func (e Entry) RemainingSeconds(now time.Time) int64 {
	return int64(e.Remaining(now) / time.Second)
}

// Classify applies the freshness policy to e.
func (e Entry) Classify(now time.Time, buffer time.Duration) State {
	switch {
	case e.IsExpired(now):
		return StateExpired
	case e.IsAboutToExpire(now, buffer):
		return StateStale
	default:
		return StateFresh
	}
}
