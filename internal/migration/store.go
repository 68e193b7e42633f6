// Package migration detects which schema generation the stored data is at and
// moves it forward to the current one. Run it once at startup, before anything
// else reads postings or connections.
package migration

import (
	"context"
	"time"
)

// KeyValueStore is the whole-value get/set store the data lives in.
// Implemented by storage.Store.
type KeyValueStore interface {
	// Get returns the values of the requested keys. Absent keys are left out
	// of the map.
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)
	Set(ctx context.Context, values map[string][]byte) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
