package gomonetize

import (
	"context"
	"time"
)

// Storage defines the persisted key-value store backing the subsystem.
// Values are strings; structured state (the ad throttle) is stored as JSON.
// All methods use concrete types from this package to avoid import cycles.
type Storage interface {
	// Get retrieves the value for a key.
	// Returns ErrKeyNotFound when the key has no value.
	Get(ctx context.Context, key string) (string, error)

	// Set stores the value for a key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
