// Package collection is the day-to-day read/write path for postings and
// connections once the stored data is at the current schema version.
package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/jobtrail/internal/merge"
	"github.com/kalambet/jobtrail/internal/records"
	"github.com/kalambet/jobtrail/internal/transform"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateURL = errors.New("a posting with this URL already exists")
	ErrDuplicateID  = errors.New("id already in use")
	ErrInvalid      = errors.New("invalid record")
)

// KeyValueStore is the whole-value get/set store the collection lives in.
// Implemented by storage.Store.
type KeyValueStore interface {
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)
	Set(ctx context.Context, values map[string][]byte) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Repository reads and edits the stored postings and connections. Each write
// rewrites the whole list, so writes are serialized.
type Repository struct {
	store  KeyValueStore
	clock  Clock
	logger *slog.Logger

	mu sync.Mutex
}

// New creates a Repository over store.
func New(store KeyValueStore) *Repository {
	return NewWithClock(store, realClock{})
}

// NewWithClock creates a Repository with a custom clock (for testing).
func NewWithClock(store KeyValueStore, clock Clock) *Repository {
	return &Repository{store: store, clock: clock, logger: slog.Default()}
}

// WithWriteLock runs fn while holding the lock that serializes the repository's
// own writes. Callers that rewrite the stored lists outside the repository,
// such as a migration run, go through it so they never interleave with an
// add or delete.
func (r *Repository) WithWriteLock(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn()
}

// Postings returns every stored posting in stored order.
func (r *Repository) Postings(ctx context.Context) ([]records.Posting, error) {
	ps, _, err := r.load(ctx, false)
	return ps, err
}

// Connections returns every stored connection in stored order.
func (r *Repository) Connections(ctx context.Context) ([]records.Connection, error) {
	_, cs, err := r.load(ctx, true)
	return cs, err
}

// Posting returns the posting with the given id.
func (r *Repository) Posting(ctx context.Context, id string) (records.Posting, error) {
	ps, err := r.Postings(ctx)
	if err != nil {
		return records.Posting{}, err
	}
	if i := indexPosting(ps, id); i >= 0 {
		return ps[i], nil
	}
	return records.Posting{}, fmt.Errorf("posting %s: %w", id, ErrNotFound)
}

// AddPosting stores a new posting and returns it with its id, timestamps and
// defaults filled in. A posting whose URL matches a stored one is rejected
// with ErrDuplicateURL.
func (r *Repository) AddPosting(ctx context.Context, p records.Posting) (records.Posting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.preparePosting(&p); err != nil {
		return records.Posting{}, err
	}

	existing, _, err := r.load(ctx, false)
	if err != nil {
		return records.Posting{}, err
	}
	if indexPosting(existing, p.ID) >= 0 {
		return records.Posting{}, fmt.Errorf("posting %s: %w", p.ID, ErrDuplicateID)
	}

	res := merge.ByNaturalKey(existing, []records.Posting{p}, records.Posting.NaturalKey)
	if res.Inserted == 0 {
		return records.Posting{}, fmt.Errorf("%s: %w", p.URL, ErrDuplicateURL)
	}

	if err := r.save(ctx, res.Merged, nil); err != nil {
		return records.Posting{}, err
	}
	r.logger.Debug("posting added", "id", p.ID, "url", p.URL)
	return p, nil
}

func (r *Repository) preparePosting(p *records.Posting) error {
	p.URL = strings.TrimSpace(p.URL)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = records.StatusSaved
	}
	if !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, p.Status)
	}
	if p.Interest == 0 {
		p.Interest = records.DefaultInterest
	}
	if p.Interest < records.MinInterest || p.Interest > records.MaxInterest {
		return fmt.Errorf("%w: interest %d outside %d-%d", ErrInvalid, p.Interest, records.MinInterest, records.MaxInterest)
	}

	now := r.clock.Now().UnixMilli()
	if p.DateAdded == 0 {
		p.DateAdded = now
	}
	p.DateModified = now
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.ConnectionIDs == nil {
		p.ConnectionIDs = []string{}
	}
	return nil
}

// DeletePosting removes a posting and drops it from every connection that
// referenced it.
func (r *Repository) DeletePosting(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ps, cs, err := r.load(ctx, true)
	if err != nil {
		return err
	}
	i := indexPosting(ps, id)
	if i < 0 {
		return fmt.Errorf("posting %s: %w", id, ErrNotFound)
	}
	ps = append(ps[:i:i], ps[i+1:]...)

	now := r.clock.Now().UnixMilli()
	touched := false
	for j := range cs {
		if ids, ok := without(cs[j].PostingIDs, id); ok {
			cs[j].PostingIDs = ids
			cs[j].DateModified = records.Ptr(now)
			touched = true
		}
	}
	if !touched {
		cs = nil
	}

	if err := r.save(ctx, ps, cs); err != nil {
		return err
	}
	r.logger.Debug("posting deleted", "id", id)
	return nil
}

// AddConnection stores a new connection with every optional field defaulted.
func (r *Repository) AddConnection(ctx context.Context, c records.Connection) (records.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return records.Connection{}, fmt.Errorf("%w: connection name is required", ErrInvalid)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.RelationshipStrength != nil {
		if s := *c.RelationshipStrength; s < records.MinRelationshipStrength || s > records.MaxRelationshipStrength {
			return records.Connection{}, fmt.Errorf("%w: relationship strength %d outside %d-%d",
				ErrInvalid, s, records.MinRelationshipStrength, records.MaxRelationshipStrength)
		}
	}

	now := r.clock.Now()
	c = transform.BackfillConnectionV3At(c, now)
	c.DateModified = records.Ptr(now.UnixMilli())

	_, cs, err := r.load(ctx, true)
	if err != nil {
		return records.Connection{}, err
	}
	if indexConnection(cs, c.ID) >= 0 {
		return records.Connection{}, fmt.Errorf("connection %s: %w", c.ID, ErrDuplicateID)
	}
	cs = append(cs, c)

	if err := r.save(ctx, nil, cs); err != nil {
		return records.Connection{}, err
	}
	r.logger.Debug("connection added", "id", c.ID)
	return c, nil
}

// LinkConnection records that a connection is relevant to a posting, on both
// sides. Linking an already linked pair changes nothing.
func (r *Repository) LinkConnection(ctx context.Context, postingID, connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ps, cs, err := r.load(ctx, true)
	if err != nil {
		return err
	}
	pi := indexPosting(ps, postingID)
	if pi < 0 {
		return fmt.Errorf("posting %s: %w", postingID, ErrNotFound)
	}
	ci := indexConnection(cs, connectionID)
	if ci < 0 {
		return fmt.Errorf("connection %s: %w", connectionID, ErrNotFound)
	}

	if ps[pi].HasConnection(connectionID) && slices.Contains(cs[ci].PostingIDs, postingID) {
		return nil
	}

	now := r.clock.Now().UnixMilli()
	if !ps[pi].HasConnection(connectionID) {
		ps[pi].ConnectionIDs = append(ps[pi].ConnectionIDs, connectionID)
		ps[pi].DateModified = now
	}
	if !slices.Contains(cs[ci].PostingIDs, postingID) {
		cs[ci].PostingIDs = append(cs[ci].PostingIDs, postingID)
		cs[ci].DateModified = records.Ptr(now)
	}
	return r.save(ctx, ps, cs)
}

// load reads postings and, when withConnections is set, connections.
func (r *Repository) load(ctx context.Context, withConnections bool) ([]records.Posting, []records.Connection, error) {
	keys := []string{records.KeyPostings}
	if withConnections {
		keys = append(keys, records.KeyConnections)
	}
	vals, err := r.store.Get(ctx, keys...)
	if err != nil {
		return nil, nil, fmt.Errorf("reading collection: %w", err)
	}
	ps, err := records.DecodeList[records.Posting](vals[records.KeyPostings])
	if err != nil {
		return nil, nil, fmt.Errorf("postings: %w", err)
	}
	if !withConnections {
		return ps, nil, nil
	}
	cs, err := records.DecodeList[records.Connection](vals[records.KeyConnections])
	if err != nil {
		return nil, nil, fmt.Errorf("connections: %w", err)
	}
	return ps, cs, nil
}

// save writes the non-nil lists in a single Set.
func (r *Repository) save(ctx context.Context, ps []records.Posting, cs []records.Connection) error {
	values := make(map[string][]byte, 2)
	if ps != nil {
		b, err := records.EncodeList(ps)
		if err != nil {
			return fmt.Errorf("encoding postings: %w", err)
		}
		values[records.KeyPostings] = b
	}
	if cs != nil {
		b, err := records.EncodeList(cs)
		if err != nil {
			return fmt.Errorf("encoding connections: %w", err)
		}
		values[records.KeyConnections] = b
	}
	if len(values) == 0 {
		return nil
	}
	if err := r.store.Set(ctx, values); err != nil {
		return fmt.Errorf("writing collection: %w", err)
	}
	return nil
}

func indexPosting(ps []records.Posting, id string) int {
	for i, p := range ps {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func indexConnection(cs []records.Connection, id string) int {
	for i, c := range cs {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func without(ids []string, id string) ([]string, bool) {
	if !slices.Contains(ids, id) {
		return ids, false
	}
	return slices.DeleteFunc(slices.Clone(ids), func(v string) bool { return v == id }), true
}
