// Package persist holds the client-state key-value port and its backends.
package persist

import (
	"context"
	"errors"

	"harvestcart/internal/metrics"
)

// Well-known keys.
const (
	CartKey    = "harvest_cart"
	GuestIDKey = "harvest_guest_id"
)

var (
	ErrNotFound = errors.New("not found")
	ErrCorrupt  = errors.New("corrupt persisted value")
)

// KV is the persistence port used by the state store. Get returns ErrNotFound
// for absent keys.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

func observe(backend, op string, err error) {
	outcome := metrics.Outcome(err)
	if errors.Is(err, ErrNotFound) {
		outcome = "miss"
	}
	metrics.PersistOps.WithLabelValues(backend, op, outcome).Inc()
}
