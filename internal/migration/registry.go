package migration

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/kalambet/jobtrail/internal/records"
)

// Registry reads and writes the schema version marker.
type Registry struct {
	store  KeyValueStore
	logger *slog.Logger
}

// NewRegistry creates a Registry over store.
func NewRegistry(store KeyValueStore) *Registry {
	return &Registry{store: store, logger: slog.Default()}
}

// Version returns the persisted schema version, or 0 when none is recorded.
// Only store failures are returned as errors.
func (r *Registry) Version(ctx context.Context) (int, error) {
	v, _, err := r.marker(ctx)
	return v, err
}

// SetVersion persists v. It does not check that versions only move forward.
func (r *Registry) SetVersion(ctx context.Context, v int) error {
	err := r.store.Set(ctx, map[string][]byte{
		records.KeySchemaVersion: []byte(strconv.Itoa(v)),
	})
	if err != nil {
		return fmt.Errorf("writing schema version: %w", err)
	}
	return nil
}

// marker reports the recorded version and whether the key exists at all.
func (r *Registry) marker(ctx context.Context) (int, bool, error) {
	vals, err := r.store.Get(ctx, records.KeySchemaVersion)
	if err != nil {
		return 0, false, fmt.Errorf("reading schema version: %w", err)
	}
	raw, ok := vals[records.KeySchemaVersion]
	if !ok {
		return 0, false, nil
	}
	return r.parse(raw), true, nil
}

// parse accepts a bare JSON integer or a quoted one. Anything else reads as 0.
func (r *Registry) parse(raw []byte) int {
	s := string(bytes.Trim(bytes.TrimSpace(raw), `"`))
	if s == "" || s == "null" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		r.logger.Warn("ignoring malformed schema version", "value", s)
		return 0
	}
	return v
}
