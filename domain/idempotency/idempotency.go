/*
Package idempotency maps a client supplied key to the order it created.
Records older than the retention window are treated as absent, so a replay
after expiry creates a new order.
*/
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Header carries the key on checkout requests.
const Header = "Idempotency-Key"

// DefaultRetention bounds how long a key deduplicates retries.
const DefaultRetention = 7 * 24 * time.Hour

// MaxKeyLength is the longest key accepted.
const MaxKeyLength = 128

var (
	// ErrKeyConflict is returned by Save when another request already stored the key.
	ErrKeyConflict = errors.New("idempotency key already used")
	ErrInvalidKey  = errors.New("invalid idempotency key")
)

// Record links a key to an order
type Record struct {
	Key       string
	OrderID   string
	CreatedAt time.Time
}

// Expired reports whether the record falls outside the window at now.
func (r Record) Expired(now time.Time, retention time.Duration) bool {
	return !r.CreatedAt.After(now.Add(-retention))
}

// NormalizeKey trims the key and validates its length. Empty means absent.
func NormalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if len(key) > MaxKeyLength {
		return "", ErrInvalidKey
	}
	return key, nil
}

// Store persists records. Save joins the transaction carried by ctx.
type Store interface {
	// Find returns nil, nil when no live record exists.
	Find(ctx context.Context, key string, notBefore time.Time) (*Record, error)

	// Save inserts the record, replacing an expired one with the same key.
	// A live record with the same key yields ErrKeyConflict.
	Save(ctx context.Context, record Record, notBefore time.Time) error

	// Purge removes records created before cutoff and returns how many.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cache is an optional fast path in front of Store.
type Cache interface {
	Get(ctx context.Context, key string) (orderID string, found bool, err error)
	Set(ctx context.Context, key, orderID string, ttl time.Duration) error
}
