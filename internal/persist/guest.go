package persist

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// GuestID returns the stable guest identifier, generating and storing one on
// first use. A failing write still returns the fresh id for this process.
func GuestID(ctx context.Context, kv KV) (string, error) {
	v, err := kv.Get(ctx, GuestIDKey)
	if err == nil {
		if id := strings.TrimSpace(string(v)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	id := NewGuestID()
	if err := kv.Set(ctx, GuestIDKey, []byte(id)); err != nil {
		return id, err
	}
	return id, nil
}

// NewGuestID returns a fresh random guest identifier.
func NewGuestID() string { return "guest_" + uuid.New().String() }
