// Package cache keeps a versioned, persisted snapshot of the SharePoint lookup
// lists and serves it with at most one remote fetch in flight per key.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/docfiler/docfiler/internal/kvstore"
	"github.com/docfiler/docfiler/internal/lookup"
	"github.com/docfiler/docfiler/internal/metrics"
)

const (
	// StorageKey is the store key holding the serialized snapshot.
	StorageKey = "sharepoint_metadata_cache"
	// Version tags the snapshot layout. Snapshots with any other version are discarded.
	Version = "1.0.4"

	DefaultStaleThreshold = 6 * time.Hour
	DefaultExpansionDelay = 3 * time.Second
	DefaultExpansionBatch = 10
	DefaultExpansionPause = 100 * time.Millisecond
)

var (
	// ErrMissingParent is returned when a dependent lookup is called without a parent id.
	ErrMissingParent = errors.New("cache: parent id is required")
	// ErrNotDependent is returned when Dependents is called for a list that has no parent
	// or is not part of the snapshot.
	ErrNotDependent = errors.New("cache: source is not a cached dependent list")
	// ErrNotRoot is returned when Roots is called for a list that is not a cached root list.
	ErrNotRoot = errors.New("cache: source is not a cached root list")
)

// Source fetches every record of one lookup list, already mapped.
type Source interface {
	Records(ctx context.Context, src lookup.Source) ([]lookup.Record, error)
}

// Manager owns the snapshot. All methods are safe for concurrent use.
type Manager struct {
	source  Source
	store   kvstore.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	storageKey     string
	version        string
	staleThreshold time.Duration
	expansionDelay time.Duration
	expansionBatch int
	expansionPause time.Duration

	mu         sync.RWMutex
	snapshot   *Snapshot
	generation uint64

	buildMu   sync.Mutex
	persistMu sync.Mutex
	flights   singleflight.Group
	updating  atomic.Bool
	building  atomic.Bool

	bgCtx     context.Context
	bgCancel  context.CancelFunc
	timerMu   sync.Mutex
	timer     *time.Timer
	closed    bool
	bgWG      sync.WaitGroup
	closeOnce sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithStaleThreshold(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.staleThreshold = d
		}
	}
}

// WithExpansion tunes background expansion: the delay after adopting a
// persisted snapshot, the number of parents per pass and the pause between fetches.
func WithExpansion(delay time.Duration, batch int, pause time.Duration) Option {
	return func(m *Manager) {
		if delay >= 0 {
			m.expansionDelay = delay
		}
		if batch > 0 {
			m.expansionBatch = batch
		}
		if pause >= 0 {
			m.expansionPause = pause
		}
	}
}

func WithStorageKey(key string) Option {
	return func(m *Manager) {
		if key != "" {
			m.storageKey = key
		}
	}
}

// New creates a manager. No snapshot is loaded until Initialize.
func New(source Source, store kvstore.Store, opts ...Option) *Manager {
	if store == nil {
		store = kvstore.NewMemory()
	}
	m := &Manager{
		source:         source,
		store:          store,
		logger:         slog.Default(),
		now:            time.Now,
		storageKey:     StorageKey,
		version:        Version,
		staleThreshold: DefaultStaleThreshold,
		expansionDelay: DefaultExpansionDelay,
		expansionBatch: DefaultExpansionBatch,
		expansionPause: DefaultExpansionPause,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.bgCtx, m.bgCancel = context.WithCancel(context.Background())
	return m
}

// Initialize adopts the persisted snapshot when its version matches and
// schedules a background expansion; otherwise it builds a new snapshot from
// the remote source. It never fails: when the build fails the returned
// snapshot is empty and is not adopted.
func (m *Manager) Initialize(ctx context.Context) *Snapshot {
	if snap, ok := m.load(); ok {
		m.mu.Lock()
		m.snapshot = snap
		m.mu.Unlock()
		m.observe(snap)
		m.logger.Info("cache loaded from store",
			"clients", len(snap.Clients), "subjects", len(snap.Subjects), "last_updated", snap.LastUpdated)
		m.scheduleExpansion()
		return snap.Clone()
	}
	return m.build(ctx)
}

// ClientsFiltered returns up to max clients whose title or id contains search,
// ignoring case and diacritics. An empty result means "ask the remote source",
// not "no such client". A non-positive max means no limit.
func (m *Manager) ClientsFiltered(search string, max int) []lookup.Record {
	snap := m.current()
	if snap == nil {
		return []lookup.Record{}
	}
	return lookup.FilterBySearch(snap.Clients, search, max)
}

// Roots returns the cached clients or document types, fetching them through
// the deduplicated path when the partition is empty.
func (m *Manager) Roots(ctx context.Context, src lookup.Source) ([]lookup.Record, error) {
	if !Cached(src) || src.Dependent() {
		return nil, fmt.Errorf("%w: %s", ErrNotRoot, src)
	}

	if cached := m.current().Partition(src); len(cached) > 0 {
		m.metrics.CacheLookup(src.String(), true)
		return cloneRecords(cached), nil
	}
	m.metrics.CacheLookup(src.String(), false)

	gen := m.Generation()
	records := m.shared(ctx, flightKey(gen, src, ""), func(ctx context.Context) []lookup.Record {
		records, err := m.source.Records(ctx, src)
		if err != nil {
			m.logger.Error("failed to load list", "source", src, "error", err)
			return []lookup.Record{}
		}
		records = lookup.Sorted(dedupe(records))
		if len(records) > 0 {
			m.replace(gen, src, records)
		}
		return records
	})
	return records, nil
}

// Dependents returns the records of src under parent: cached children when
// any exist, otherwise a deduplicated remote fetch that is merged into the
// snapshot. Results are sorted by title. Remote failures yield an empty
// slice; only contract violations return an error.
func (m *Manager) Dependents(ctx context.Context, src lookup.Source, parent lookup.Parent) ([]lookup.Record, error) {
	if !Cached(src) || !src.Dependent() {
		return nil, fmt.Errorf("%w: %s", ErrNotDependent, src)
	}
	parent.ID = strings.TrimSpace(parent.ID)
	if parent.ID == "" {
		return nil, fmt.Errorf("%s: %w", src, ErrMissingParent)
	}

	if cached := children(m.current().Partition(src), parent.ID); len(cached) > 0 {
		m.metrics.CacheLookup(src.String(), true)
		return cached, nil
	}
	m.metrics.CacheLookup(src.String(), false)

	gen := m.Generation()
	records := m.shared(ctx, flightKey(gen, src, parent.ID), func(ctx context.Context) []lookup.Record {
		return m.loadChildren(ctx, gen, src, parent)
	})
	return records, nil
}

// DependentByParent returns the subjects of a client.
func (m *Manager) DependentByParent(ctx context.Context, clientID string) ([]lookup.Record, error) {
	return m.Dependents(ctx, lookup.Subjects, lookup.Parent{ID: clientID})
}

// Fetch runs fn at most once concurrently per key and generation. It is the
// remote path for lists that are not part of the snapshot. Unlike the
// snapshot paths it reports fn's error to every caller sharing the flight.
func (m *Manager) Fetch(ctx context.Context, key string, fn func(ctx context.Context) ([]lookup.Record, error)) ([]lookup.Record, error) {
	v, err, shared := m.flights.Do(fmt.Sprintf("%d/fetch/%s", m.Generation(), key), func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	if shared {
		m.metrics.SharedFetch()
	}
	if err != nil {
		return nil, err
	}
	return cloneRecords(v.([]lookup.Record)), nil
}

// Metadata describes the current snapshot, or returns nil when none is loaded.
func (m *Manager) Metadata() *Metadata {
	return m.describe(m.current())
}

// Peek describes the persisted snapshot without adopting it or fetching
// anything. It returns nil when nothing usable is persisted.
func (m *Manager) Peek() *Metadata {
	snap, ok := m.load()
	if !ok {
		return nil
	}
	return m.describe(snap)
}

func (m *Manager) describe(snap *Snapshot) *Metadata {
	if snap == nil {
		return nil
	}
	return &Metadata{
		LastUpdated: snap.LastUpdated,
		Version:     snap.Version,
		RecordCount: len(snap.Clients) + len(snap.Subjects) + len(snap.SubSubjects),
		IsStale:     m.isStale(snap),
	}
}

// ForceUpdate clears every cached record and rebuilds from the remote source.
func (m *Manager) ForceUpdate(ctx context.Context) *Snapshot {
	m.Clear()
	return m.build(ctx)
}

// Clear drops the in-memory snapshot and the persisted copy. Fetches already
// in flight still return their data to their callers but are never merged.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.generation++
	m.snapshot = nil
	m.mu.Unlock()

	m.stopTimer()

	m.persistMu.Lock()
	defer m.persistMu.Unlock()
	if err := m.store.Remove(m.storageKey); err != nil {
		m.logger.Warn("failed to remove persisted cache", "error", err)
	}
}

// IsUpdating reports whether a build or a background expansion is running.
func (m *Manager) IsUpdating() bool {
	return m.updating.Load() || m.building.Load()
}

// Generation increases every time the cache is cleared.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Close cancels any scheduled or running background work and waits for it.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.timerMu.Lock()
		m.closed = true
		m.timerMu.Unlock()
		m.stopTimer()
		m.bgCancel()
		m.bgWG.Wait()
	})
}

func (m *Manager) current() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

func (m *Manager) isStale(s *Snapshot) bool {
	return m.now().Sub(s.LastUpdated) > m.staleThreshold
}

// shared runs fn under singleflight. fn runs detached from the caller's
// cancellation so that one caller giving up does not fail the others.
func (m *Manager) shared(ctx context.Context, key string, fn func(ctx context.Context) []lookup.Record) []lookup.Record {
	return m.flight(context.WithoutCancel(ctx), key, fn)
}

// flight runs fn under singleflight with ctx unchanged. Background work uses
// it so that Close reaches a fetch it started; callers joining such a flight
// get an empty result when it is cancelled.
func (m *Manager) flight(ctx context.Context, key string, fn func(ctx context.Context) []lookup.Record) []lookup.Record {
	v, _, shared := m.flights.Do(key, func() (any, error) {
		return fn(ctx), nil
	})
	if shared {
		m.metrics.SharedFetch()
	}
	return cloneRecords(v.([]lookup.Record))
}

func flightKey(gen uint64, src lookup.Source, parentID string) string {
	return fmt.Sprintf("%d/%s/%s", gen, src, parentID)
}

// build fetches clients and document types concurrently and adopts the result.
func (m *Manager) build(ctx context.Context) *Snapshot {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()
	m.building.Store(true)
	defer m.building.Store(false)

	gen := m.Generation()

	var clients, docTypes []lookup.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		clients, err = m.source.Records(gctx, lookup.Clients)
		return err
	})
	g.Go(func() error {
		var err error
		docTypes, err = m.source.Records(gctx, lookup.DocumentTypes)
		return err
	})
	if err := g.Wait(); err != nil {
		m.logger.Warn("initial cache build failed, data may load slower than usual", "error", err)
		return emptySnapshot(m.now(), m.version)
	}

	snap := emptySnapshot(m.now(), m.version)
	snap.Clients = lookup.Sorted(dedupe(clients))
	snap.DocumentTypes = lookup.Sorted(dedupe(docTypes))

	m.mu.Lock()
	adopted := m.generation == gen
	if adopted {
		m.snapshot = snap
	}
	m.mu.Unlock()

	if !adopted {
		m.metrics.DiscardedMerge()
		m.logger.Debug("cache cleared during build, result not adopted")
		return snap.Clone()
	}

	m.observe(snap)
	m.persist()
	m.logger.Info("cache built", "clients", len(snap.Clients), "document_types", len(snap.DocumentTypes))
	return snap.Clone()
}

// loadChildren fetches, filters and merges the children of parent.
func (m *Manager) loadChildren(ctx context.Context, gen uint64, src lookup.Source, parent lookup.Parent) []lookup.Record {
	if parent.Title == "" {
		if p, ok := findByID(m.current().Partition(src.Parent()), parent.ID); ok {
			parent.Title = p.Title
		}
	}

	records, err := m.source.Records(ctx, src)
	if err != nil {
		m.logger.Error("failed to load dependent list", "source", src, "parent", parent.ID, "error", err)
		return []lookup.Record{}
	}

	matched := src.Filter(records, parent)
	out := make([]lookup.Record, 0, len(matched))
	for _, r := range matched {
		out = append(out, lookup.Record{ID: r.ID, Title: r.Title, ParentID: parent.ID})
	}
	out = lookup.Sorted(dedupe(out))

	if len(out) > 0 {
		m.mergeChildren(gen, src, parent.ID, out)
	}
	return out
}

// mergeChildren replaces the children of parentID in the partition for src,
// keeping every other parent's children.
func (m *Manager) mergeChildren(gen uint64, src lookup.Source, parentID string, fetched []lookup.Record) {
	m.mu.Lock()
	if m.generation != gen || m.snapshot == nil {
		m.mu.Unlock()
		m.metrics.DiscardedMerge()
		m.logger.Debug("discarding fetch result for cleared cache", "source", src, "parent", parentID)
		return
	}

	existing := m.snapshot.Partition(src)
	merged := make([]lookup.Record, 0, len(existing)+len(fetched))
	for _, r := range existing {
		if r.ParentID != parentID {
			merged = append(merged, r)
		}
	}
	merged = append(merged, fetched...)
	lookup.SortByTitle(merged)

	next := m.snapshot.with(src, merged)
	next.LastUpdated = m.now()
	m.snapshot = next
	m.mu.Unlock()

	m.observe(next)
	m.persist()
}

// replace swaps a root partition in the current snapshot.
func (m *Manager) replace(gen uint64, src lookup.Source, records []lookup.Record) {
	m.mu.Lock()
	if m.generation != gen || m.snapshot == nil {
		m.mu.Unlock()
		m.metrics.DiscardedMerge()
		return
	}
	next := m.snapshot.with(src, records)
	next.LastUpdated = m.now()
	m.snapshot = next
	m.mu.Unlock()

	m.observe(next)
	m.persist()
}

// dedupe keeps the first record per (parent, id).
func dedupe(records []lookup.Record) []lookup.Record {
	type key struct{ parent, id string }
	seen := make(map[key]struct{}, len(records))
	out := make([]lookup.Record, 0, len(records))
	for _, r := range records {
		k := key{r.ParentID, r.ID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

func (m *Manager) observe(s *Snapshot) {
	m.metrics.SnapshotSize("clientes", len(s.Clients))
	m.metrics.SnapshotSize("asuntos", len(s.Subjects))
	m.metrics.SnapshotSize("subasuntos", len(s.SubSubjects))
	m.metrics.SnapshotSize("tiposDocumento", len(s.DocumentTypes))
	m.metrics.SnapshotSize("subtipos", len(s.SubTypes))
}
