package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docfiler/docfiler/internal/cache"
	"github.com/docfiler/docfiler/internal/kvstore"
	"github.com/docfiler/docfiler/internal/lookup"
)

var testLists = map[string]string{
	"clientes":       "L-clientes",
	"asuntos":        "L-asuntos",
	"tiposDocumento": "L-tipos",
	"CARPETA1":       "L-c1",
	"CARPETA2":       "L-c2",
	"CARPETA3":       "L-c3",
	"CARPETA6":       "",
}

type fakeFetcher struct {
	mu      sync.Mutex
	items   map[string][]map[string]any
	fails   map[string]int
	calls   map[string]int
	gates   map[string]chan struct{}
	started chan string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		items: map[string][]map[string]any{
			"L-clientes": {
				raw("1", map[string]any{"field_0": "C1", "Title": "ACME"}),
				raw("2", map[string]any{"field_0": "C2", "Title": "Globex"}),
			},
			"L-asuntos": {
				raw("1", map[string]any{"Title": "A1", "field_1": "Laboral", "field_2": "C1", "field_3": "ACME"}),
				raw("2", map[string]any{"Title": "A2", "field_1": "Fiscal", "field_2": "C2", "field_3": "Globex"}),
				raw("3", map[string]any{"Title": "A3", "field_1": "General"}),
			},
			"L-tipos": {
				raw("1", map[string]any{"Title": "T1", "field_1": "Contrato"}),
			},
			"L-c1": {
				raw("1", map[string]any{"Title": "F1", "field_1": "Ventas"}),
			},
			"L-c2": {
				raw("1", map[string]any{"Title": "F2", "field_1": "Contratos", "field_2": "F1"}),
				raw("2", map[string]any{"Title": "F2b", "field_1": "Facturas", "field_2": "F1"}),
			},
			"L-c3": {
				raw("1", map[string]any{"Title": "F3", "field_1": "2024", "field_2": "F2", "field_4": "contratos"}),
				raw("2", map[string]any{"Title": "F3x", "field_1": "Otro", "field_2": "F2", "field_4": "Facturas"}),
			},
		},
		fails:   map[string]int{},
		calls:   map[string]int{},
		gates:   map[string]chan struct{}{},
		started: make(chan string, 16),
	}
}

func raw(id string, fields map[string]any) map[string]any {
	return map[string]any{"id": id, "fields": fields}
}

func (f *fakeFetcher) FetchList(_ context.Context, listID string) ([]map[string]any, error) {
	f.mu.Lock()
	f.calls[listID]++
	gate := f.gates[listID]
	failing := f.fails[listID] > 0
	if failing {
		f.fails[listID]--
	}
	items := f.items[listID]
	f.mu.Unlock()

	if gate != nil {
		f.started <- listID
		<-gate
	}
	if failing {
		return nil, errors.New("service unavailable")
	}
	return items, nil
}

func (f *fakeFetcher) gate(listID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[listID] = ch
	return ch
}

func (f *fakeFetcher) count(listID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[listID]
}

func newService(t *testing.T, fetcher *fakeFetcher) *LookupService {
	t.Helper()
	remote := NewRemoteLists(fetcher, testLists)
	manager := cache.New(remote, kvstore.NewMemory(), cache.WithExpansion(time.Hour, 0, -1))
	t.Cleanup(manager.Close)
	return NewLookupService(manager, remote)
}

func titles(records []lookup.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

func TestClientsServedFromCache(t *testing.T) {
	fetcher := newFakeFetcher()
	svc := newService(t, fetcher)
	ctx := context.Background()

	assert.Equal(t, []string{"ACME", "Globex"}, titles(svc.Clients(ctx, "", 10)))
	assert.Equal(t, []string{"Globex"}, titles(svc.Clients(ctx, "glob", 10)))
	assert.Empty(t, svc.Clients(ctx, "nobody", 10))
	assert.Equal(t, 1, fetcher.count("L-clientes"))
}

func TestClientsFallBackToRemoteWhenBuildFailed(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.fails["L-clientes"] = 1
	svc := newService(t, fetcher)

	got := svc.Clients(context.Background(), "acme", 10)
	assert.Equal(t, []string{"ACME"}, titles(got))
	assert.Equal(t, 2, fetcher.count("L-clientes"))
	assert.Nil(t, svc.Metadata())
}

func TestSubjectsMapAndFilterRemoteItems(t *testing.T) {
	fetcher := newFakeFetcher()
	svc := newService(t, fetcher)
	ctx := context.Background()

	got, err := svc.Subjects(ctx, lookup.Parent{ID: "C1", Title: "ACME"})
	require.NoError(t, err)
	assert.Equal(t, []string{"General", "Laboral"}, titles(got))

	again, err := svc.Subjects(ctx, lookup.Parent{ID: "C1"})
	require.NoError(t, err)
	assert.Equal(t, titles(got), titles(again))
	assert.Equal(t, 1, fetcher.count("L-asuntos"), "second call is a cache hit")

	_, err = svc.Subjects(ctx, lookup.Parent{})
	assert.ErrorIs(t, err, cache.ErrMissingParent)
}

func TestFolderListsAreMemoizedUntilClear(t *testing.T) {
	fetcher := newFakeFetcher()
	svc := newService(t, fetcher)
	ctx := context.Background()

	first, err := svc.Folders(ctx, 1, lookup.Parent{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ventas"}, titles(first))

	_, err = svc.Folders(ctx, 1, lookup.Parent{})
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.count("L-c1"))

	svc.Clear()
	_, err = svc.Folders(ctx, 1, lookup.Parent{})
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.count("L-c1"))
}

func TestFolderLevelTwoFiltersByParentID(t *testing.T) {
	svc := newService(t, newFakeFetcher())

	got, err := svc.Folders(context.Background(), 2, lookup.Parent{ID: "F1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Contratos", "Facturas"}, titles(got))

	_, err = svc.Folders(context.Background(), 2, lookup.Parent{})
	assert.ErrorIs(t, err, cache.ErrMissingParent)
}

func TestFolderLevelThreeRequiresTitleInSomeField(t *testing.T) {
	fetcher := newFakeFetcher()
	svc := newService(t, fetcher)

	got, err := svc.Folders(context.Background(), 3, lookup.Parent{ID: "F2", Title: "Contratos"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024"}, titles(got))

	got, err = svc.Folders(context.Background(), 3, lookup.Parent{ID: "F2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024"}, titles(got), "missing title is looked up from level two")
	assert.Equal(t, 1, fetcher.count("L-c2"))
}

func TestUnconfiguredListYieldsEmpty(t *testing.T) {
	fetcher := newFakeFetcher()
	svc := newService(t, fetcher)

	got, err := svc.Folders(context.Background(), 6, lookup.Parent{ID: "F5"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, svc.HRFolders(context.Background()), "lists missing from the config are unconfigured too")
}

func TestRemoteFailureIsNotMemoized(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.fails["L-c1"] = 1
	svc := newService(t, fetcher)
	ctx := context.Background()

	got, err := svc.Folders(ctx, 1, lookup.Parent{})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = svc.Folders(ctx, 1, lookup.Parent{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFolderSourceRange(t *testing.T) {
	_, err := FolderSource(0)
	assert.Error(t, err)
	_, err = FolderSource(8)
	assert.Error(t, err)

	src, err := FolderSource(7)
	require.NoError(t, err)
	assert.Equal(t, lookup.Folder7, src)
}

func TestForceRefreshRebuildsSnapshot(t *testing.T) {
	fetcher := newFakeFetcher()
	svc := newService(t, fetcher)
	ctx := context.Background()

	svc.Initialize(ctx)
	require.NotNil(t, svc.Metadata())

	snap := svc.ForceRefresh(ctx)
	assert.Len(t, snap.Clients, 2)
	assert.Equal(t, 2, fetcher.count("L-clientes"))
	assert.False(t, svc.IsUpdating())
}

func TestClearDuringFetchDoesNotMemoizeStaleList(t *testing.T) {
	fetcher := newFakeFetcher()
	release := fetcher.gate("L-c1")
	svc := newService(t, fetcher)
	ctx := context.Background()

	done := make(chan []lookup.Record, 1)
	go func() {
		got, _ := svc.Folders(ctx, 1, lookup.Parent{})
		done <- got
	}()
	select {
	case <-fetcher.started:
	case <-time.After(2 * time.Second):
		t.Fatal("folder fetch never started")
	}

	svc.Clear()
	close(release)
	assert.Len(t, <-done, 1, "the caller still gets the list it fetched")

	_, err := svc.Folders(ctx, 1, lookup.Parent{})
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.count("L-c1"), "a list fetched before the clear is not reused")
}
