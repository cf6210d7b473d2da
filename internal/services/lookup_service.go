package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/docfiler/docfiler/internal/cache"
	"github.com/docfiler/docfiler/internal/lookup"
)

const memoSize = 64

// Remote is the record-level remote source.
type Remote interface {
	cache.Source
	Configured(src lookup.Source) bool
}

// LookupService serves every lookup list, cache first. Its methods never fail
// on remote or storage problems; they return an empty slice instead. Errors
// are reserved for calls that break the contract, such as a dependent lookup
// without a parent.
type LookupService struct {
	manager *cache.Manager
	remote  Remote
	logger  *slog.Logger
	memo    *expirable.LRU[lookup.Source, []lookup.Record]
	// memoMu orders memo writes against purges; reads go straight to memo.
	memoMu sync.Mutex

	initMu      sync.Mutex
	initialized bool
}

type ServiceOption func(*LookupService)

func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *LookupService) { s.logger = logger }
}

// WithSessionTTL bounds how long lists outside the snapshot are memoized.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *LookupService) {
		s.memo = expirable.NewLRU[lookup.Source, []lookup.Record](memoSize, nil, ttl)
	}
}

func NewLookupService(manager *cache.Manager, remote Remote, opts ...ServiceOption) *LookupService {
	s := &LookupService{
		manager: manager,
		remote:  remote,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.memo == nil {
		s.memo = expirable.NewLRU[lookup.Source, []lookup.Record](memoSize, nil, cache.DefaultStaleThreshold)
	}
	return s
}

// Initialize loads or builds the cache. Only the first call does any work.
func (s *LookupService) Initialize(ctx context.Context) {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initialized {
		return
	}
	snap := s.manager.Initialize(ctx)
	if len(snap.Clients) == 0 {
		s.logger.Warn("client list could not be loaded, data may load slower than usual")
	}
	s.initialized = true
}

// Clients returns up to max clients matching search.
func (s *LookupService) Clients(ctx context.Context, search string, max int) []lookup.Record {
	s.Initialize(ctx)
	if cached := s.manager.ClientsFiltered(search, max); len(cached) > 0 {
		return cached
	}
	all, err := s.manager.Roots(ctx, lookup.Clients)
	if err != nil {
		s.logger.Error("failed to load clients", "error", err)
		return []lookup.Record{}
	}
	return lookup.FilterBySearch(all, search, max)
}

// Subjects returns the subjects of a client.
func (s *LookupService) Subjects(ctx context.Context, client lookup.Parent) ([]lookup.Record, error) {
	return s.Options(ctx, lookup.Subjects, client)
}

// SubSubjects returns the sub-subjects of a subject.
func (s *LookupService) SubSubjects(ctx context.Context, subject lookup.Parent) ([]lookup.Record, error) {
	return s.Options(ctx, lookup.SubSubjects, subject)
}

func (s *LookupService) DocumentTypes(ctx context.Context) []lookup.Record {
	records, _ := s.Options(ctx, lookup.DocumentTypes, lookup.Parent{})
	return records
}

// SubTypes returns the sub-types of a document type.
func (s *LookupService) SubTypes(ctx context.Context, docType lookup.Parent) ([]lookup.Record, error) {
	return s.Options(ctx, lookup.SubTypes, docType)
}

func (s *LookupService) HRFolders(ctx context.Context) []lookup.Record {
	records, _ := s.Options(ctx, lookup.HRFolders, lookup.Parent{})
	return records
}

func (s *LookupService) ConsulateLevel1(ctx context.Context) []lookup.Record {
	records, _ := s.Options(ctx, lookup.ConsulateLevel1, lookup.Parent{})
	return records
}

func (s *LookupService) ConsulateLevel2(ctx context.Context) []lookup.Record {
	records, _ := s.Options(ctx, lookup.ConsulateLevel2, lookup.Parent{})
	return records
}

func (s *LookupService) AccountingThemes(ctx context.Context) []lookup.Record {
	records, _ := s.Options(ctx, lookup.AccountingThemes, lookup.Parent{})
	return records
}

func (s *LookupService) AccountingSubThemes(ctx context.Context, theme lookup.Parent) ([]lookup.Record, error) {
	return s.Options(ctx, lookup.AccountingSubThemes, theme)
}

func (s *LookupService) AccountingDocTypes(ctx context.Context) []lookup.Record {
	records, _ := s.Options(ctx, lookup.AccountingDocTypes, lookup.Parent{})
	return records
}

func (s *LookupService) TaxFolders(ctx context.Context) []lookup.Record {
	records, _ := s.Options(ctx, lookup.TaxFolders, lookup.Parent{})
	return records
}

// Folders returns the folders of level 1 to 7. Levels above 1 need the
// selected folder of the level above.
func (s *LookupService) Folders(ctx context.Context, level int, parent lookup.Parent) ([]lookup.Record, error) {
	src, err := FolderSource(level)
	if err != nil {
		return nil, err
	}
	return s.Options(ctx, src, parent)
}

// FolderSource maps a folder level to its source.
func FolderSource(level int) (lookup.Source, error) {
	folders := []lookup.Source{
		lookup.Folder1, lookup.Folder2, lookup.Folder3, lookup.Folder4,
		lookup.Folder5, lookup.Folder6, lookup.Folder7,
	}
	if level < 1 || level > len(folders) {
		return "", fmt.Errorf("folder level %d out of range 1-7", level)
	}
	return folders[level-1], nil
}

// Options returns the options of any lookup list. parent is ignored for root lists.
func (s *LookupService) Options(ctx context.Context, src lookup.Source, parent lookup.Parent) ([]lookup.Record, error) {
	if !src.Valid() {
		return nil, fmt.Errorf("%w: %q", lookup.ErrUnknownSource, src)
	}
	s.Initialize(ctx)

	if cache.Cached(src) {
		if src.Dependent() {
			return s.manager.Dependents(ctx, src, parent)
		}
		return s.manager.Roots(ctx, src)
	}

	if src.Dependent() && parent.ID == "" {
		return nil, fmt.Errorf("%s: %w", src, cache.ErrMissingParent)
	}

	all := s.list(ctx, src)
	if !src.Dependent() {
		return slices.Clone(all), nil
	}

	if src.Match() == lookup.MatchIDAndTitleScan && parent.Title == "" {
		parent.Title = s.parentTitle(ctx, src, parent.ID)
	}
	return src.Filter(all, parent), nil
}

// list returns the whole list behind src, memoized for the session.
func (s *LookupService) list(ctx context.Context, src lookup.Source) []lookup.Record {
	if records, ok := s.memo.Get(src); ok {
		return records
	}

	if !s.remote.Configured(src) {
		s.logger.Warn("lookup list is not configured", "source", src, "list", src.ListKey())
		return []lookup.Record{}
	}

	gen := s.manager.Generation()
	records, err := s.manager.Fetch(ctx, src.String(), func(ctx context.Context) ([]lookup.Record, error) {
		records, err := s.remote.Records(ctx, src)
		if err != nil {
			return nil, err
		}
		return lookup.Sorted(records), nil
	})
	if err != nil {
		s.logger.Error("failed to load lookup list", "source", src, "error", err)
		return []lookup.Record{}
	}

	s.memoMu.Lock()
	if s.manager.Generation() == gen {
		s.memo.Add(src, records)
	}
	s.memoMu.Unlock()
	return records
}

// purge empties the memo. Callers bump the cache generation first so that
// no fetch started before the purge can memoize its result afterwards.
func (s *LookupService) purge() {
	s.memoMu.Lock()
	defer s.memoMu.Unlock()
	s.memo.Purge()
}

// parentTitle finds the title of the selected option one level above src.
func (s *LookupService) parentTitle(ctx context.Context, src lookup.Source, parentID string) string {
	above := src.Parent()
	if above == "" {
		return ""
	}
	for _, r := range s.list(ctx, above) {
		if r.ID == parentID {
			return r.Title
		}
	}
	return ""
}

// Metadata describes the cache, or returns nil when nothing is loaded.
func (s *LookupService) Metadata() *cache.Metadata {
	return s.manager.Metadata()
}

// ForceRefresh drops every cached list and rebuilds the snapshot.
func (s *LookupService) ForceRefresh(ctx context.Context) *cache.Snapshot {
	snap := s.manager.ForceUpdate(ctx)
	s.purge()
	s.initMu.Lock()
	s.initialized = true
	s.initMu.Unlock()
	return snap
}

// Clear drops every cached list, in memory and on disk.
func (s *LookupService) Clear() {
	s.manager.Clear()
	s.purge()
	s.initMu.Lock()
	s.initialized = false
	s.initMu.Unlock()
}

func (s *LookupService) IsUpdating() bool {
	return s.manager.IsUpdating()
}
