package params

import "time"

// Retention decides where a fetched parameter is held.
type Retention int

const (
	// Temporary entries live in memory for the process lifetime.
	Temporary Retention = iota

	// Persistent entries are additionally written to durable local storage
	// and survive process restarts. They are never silently invalidated
	// except by an explicitly configured TTL or Invalidate.
	Persistent
)

// String returns the retention name for logs.
func (r Retention) String() string {
	switch r {
	case Persistent:
		return "persistent"
	default:
		return "temporary"
	}
}

// Policy is the per-name retention policy.
type Policy struct {
	Retention Retention

	// TTL expires an entry once now - FetchedAt exceeds it, forcing a
	// re-fetch on the next Get. Zero means no automatic expiry.
	TTL time.Duration
}

// Value is a fetched parameter value together with its fetch time.
type Value struct {
	String    string
	FetchedAt time.Time
}

// expired reports whether the entry is stale under the policy at time now.
func (p Policy) expired(v Value, now time.Time) bool {
	return p.TTL > 0 && now.Sub(v.FetchedAt) > p.TTL
}
