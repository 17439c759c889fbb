// Package version provides per-key monotonically increasing counters.
//
// Every mutation of a resource increments its counter. Clients compare the
// counter they last saw with the current one to decide whether a cached list
// is stale.
package version

import "context"

// Resource keys.
const (
	KeyTransaction = "transaction"
	KeyAccount     = "account"
	KeyTag         = "tag"
)

// Store is a per-key counter. Get returns 0 for keys never incremented.
// Increment must not lose updates under concurrent callers.
type Store interface {
	Get(ctx context.Context, key string) (int64, error)
	Increment(ctx context.Context, key string) (int64, error)
}
