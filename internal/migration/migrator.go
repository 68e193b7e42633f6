package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kalambet/jobtrail/internal/merge"
	"github.com/kalambet/jobtrail/internal/records"
	"github.com/kalambet/jobtrail/internal/transform"
)

// State is a step of a migration run.
type State int

const (
	StateUpToDate State = iota
	StateNeedsPostingMigration
	StateNeedsConnectionBackfill
	StateDone
)

func (s State) String() string {
	switch s {
	case StateUpToDate:
		return "up_to_date"
	case StateNeedsPostingMigration:
		return "needs_posting_migration"
	case StateNeedsConnectionBackfill:
		return "needs_connection_backfill"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText lets reports encode the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Report describes what a RunIfNeeded call did.
type Report struct {
	FromVersion int    `json:"fromVersion"`
	ToVersion   int    `json:"toVersion"`
	State       State  `json:"state"`
	LegacyKey   string `json:"legacyKey,omitempty"`
	Inserted    int    `json:"inserted"`
	Skipped     int    `json:"skipped"`
	// CoercedStatuses counts legacy records whose status was not a known value.
	CoercedStatuses       int  `json:"coercedStatuses"`
	ConnectionsBackfilled int  `json:"connectionsBackfilled"`
	BackupWritten         bool `json:"backupWritten"`
}

// Migrator moves stored data to records.CurrentSchemaVersion.
type Migrator struct {
	store    KeyValueStore
	registry *Registry
	clock    Clock
	logger   *slog.Logger

	// legacyKeys are probed in order; the first non-empty one is the legacy
	// dataset.
	legacyKeys []string
}

// NewMigrator creates a Migrator over store.
func NewMigrator(store KeyValueStore) *Migrator {
	return NewMigratorWithClock(store, realClock{})
}

// NewMigratorWithClock creates a Migrator with a custom clock (for testing).
func NewMigratorWithClock(store KeyValueStore, clock Clock) *Migrator {
	return &Migrator{
		store:      store,
		registry:   NewRegistry(store),
		clock:      clock,
		logger:     slog.Default(),
		legacyKeys: records.LegacyKeys,
	}
}

// Registry returns the version registry the migrator reads and advances.
func (m *Migrator) Registry() *Registry { return m.registry }

// plan is the full set of writes for one run, computed before any of them is
// issued.
type plan struct {
	postings    []byte
	backup      []byte
	connections []byte
}

// RunIfNeeded migrates the stored data if its version is behind. It is safe to
// call on every start: an up-to-date store sees no writes, and a run that was
// interrupted before the version was advanced can be repeated without
// duplicating postings.
func (m *Migrator) RunIfNeeded(ctx context.Context) (Report, error) {
	from, err := m.registry.Version(ctx)
	if err != nil {
		return Report{}, err
	}
	rep := Report{FromVersion: from, ToVersion: from, State: StateUpToDate}
	if from >= records.CurrentSchemaVersion {
		m.logger.Debug("schema up to date", "version", from)
		return rep, nil
	}

	m.logger.Info("migrating stored data", "from", from, "to", records.CurrentSchemaVersion)

	keys := append([]string{records.KeyPostings, records.KeyConnections, records.KeyLegacyBackup}, m.legacyKeys...)
	vals, err := m.store.Get(ctx, keys...)
	if err != nil {
		return rep, fmt.Errorf("reading stored data: %w", err)
	}

	var p plan

	legacyKey, legacy, err := m.findLegacy(vals)
	if err != nil {
		return rep, err
	}
	if legacyKey != "" {
		rep.State = StateNeedsPostingMigration
		rep.LegacyKey = legacyKey
		m.logger.Info("found legacy postings", "key", legacyKey, "count", len(legacy))

		if err := m.planPostings(vals, legacy, &p, &rep); err != nil {
			return rep, err
		}
		if _, ok := vals[records.KeyLegacyBackup]; !ok {
			p.backup = vals[legacyKey]
		}
	}

	rep.State = StateNeedsConnectionBackfill
	if err := m.planConnections(vals, &p, &rep); err != nil {
		return rep, err
	}

	if err := m.apply(ctx, p, &rep); err != nil {
		return rep, err
	}

	rep.State = StateDone
	rep.ToVersion = records.CurrentSchemaVersion
	m.logger.Info("migration complete",
		"from", rep.FromVersion,
		"to", rep.ToVersion,
		"inserted", rep.Inserted,
		"skipped", rep.Skipped,
		"connections_backfilled", rep.ConnectionsBackfilled,
	)
	return rep, nil
}

// findLegacy returns the first legacy key holding a non-empty list.
func (m *Migrator) findLegacy(vals map[string][]byte) (string, []records.LegacyRecord, error) {
	for _, key := range m.legacyKeys {
		raw, ok := vals[key]
		if !ok {
			continue
		}
		recs, err := records.DecodeList[records.LegacyRecord](raw)
		if err != nil {
			return "", nil, fmt.Errorf("legacy key %q: %w", key, err)
		}
		if len(recs) > 0 {
			return key, recs, nil
		}
	}
	return "", nil, nil
}

// storedPosting is one element of the postings list, kept as the exact bytes
// it was read or built from. Only key is derived from it.
type storedPosting struct {
	key string
	raw json.RawMessage
}

func storedPostingKey(s storedPosting) string { return s.key }

// decodeStoredPostings splits the postings list into its elements without
// decoding them into records.Posting, so existing entries are written back
// exactly as they were stored.
func (m *Migrator) decodeStoredPostings(raw []byte) ([]storedPosting, error) {
	items, err := records.DecodeList[json.RawMessage](raw)
	if err != nil {
		return nil, err
	}
	out := make([]storedPosting, 0, len(items))
	for i, item := range items {
		var ident struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		}
		if err := json.Unmarshal(item, &ident); err != nil {
			// Kept as is; a key no posting can produce means it never matches.
			m.logger.Warn("existing posting has no usable key", "index", i, "err", err)
			out = append(out, storedPosting{key: fmt.Sprintf("\x00unkeyed:%d", i), raw: item})
			continue
		}
		key := records.Posting{ID: ident.ID, URL: ident.URL}.NaturalKey()
		out = append(out, storedPosting{key: key, raw: item})
	}
	return out, nil
}

func (m *Migrator) planPostings(vals map[string][]byte, legacy []records.LegacyRecord, p *plan, rep *Report) error {
	existing, err := m.decodeStoredPostings(vals[records.KeyPostings])
	if err != nil {
		return fmt.Errorf("postings: %w", err)
	}

	now := m.clock.Now()
	incoming := make([]storedPosting, 0, len(legacy))
	for _, rec := range legacy {
		if _, ok := transform.MapLegacyStatus(rec.Status); !ok {
			rep.CoercedStatuses++
			m.logger.Warn("coerced unknown legacy status", "id", rec.ID, "status", rec.Status)
		}
		posting := transform.LegacyToPostingAt(rec, now)
		raw, err := json.Marshal(posting)
		if err != nil {
			return fmt.Errorf("encoding posting %q: %w", posting.ID, err)
		}
		incoming = append(incoming, storedPosting{key: posting.NaturalKey(), raw: raw})
	}

	res := merge.ByNaturalKey(existing, incoming, storedPostingKey)
	rep.Inserted = res.Inserted
	rep.Skipped = res.Skipped
	m.logger.Info("merged legacy postings", "inserted", res.Inserted, "skipped", res.Skipped)

	merged := make([]json.RawMessage, len(res.Merged))
	for i, s := range res.Merged {
		merged[i] = s.raw
	}
	b, err := records.EncodeList(merged)
	if err != nil {
		return fmt.Errorf("encoding postings: %w", err)
	}
	p.postings = b
	return nil
}

func (m *Migrator) planConnections(vals map[string][]byte, p *plan, rep *Report) error {
	conns, err := records.DecodeList[records.Connection](vals[records.KeyConnections])
	if err != nil {
		return fmt.Errorf("connections: %w", err)
	}
	if len(conns) == 0 {
		return nil
	}

	now := m.clock.Now()
	for i, c := range conns {
		if transform.NeedsBackfillV3(c) {
			rep.ConnectionsBackfilled++
		}
		conns[i] = transform.BackfillConnectionV3At(c, now)
	}

	b, err := records.EncodeList(conns)
	if err != nil {
		return fmt.Errorf("encoding connections: %w", err)
	}
	p.connections = b
	return nil
}

// apply issues the planned writes one key at a time, the version marker last.
func (m *Migrator) apply(ctx context.Context, p plan, rep *Report) error {
	if p.postings != nil {
		if err := m.set(ctx, records.KeyPostings, p.postings); err != nil {
			return err
		}
	}
	if p.backup != nil {
		if err := m.set(ctx, records.KeyLegacyBackup, p.backup); err != nil {
			return err
		}
		rep.BackupWritten = true
	}
	if p.connections != nil {
		if err := m.set(ctx, records.KeyConnections, p.connections); err != nil {
			return err
		}
	}
	return m.registry.SetVersion(ctx, records.CurrentSchemaVersion)
}

func (m *Migrator) set(ctx context.Context, key string, value []byte) error {
	if err := m.store.Set(ctx, map[string][]byte{key: value}); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}
