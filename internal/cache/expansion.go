package cache

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docfiler/docfiler/internal/lookup"
)

func (m *Manager) scheduleExpansion() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.closed {
		return
	}
	if m.timer != nil && m.timer.Stop() {
		m.bgWG.Done()
	}
	m.bgWG.Add(1)
	m.timer = time.AfterFunc(m.expansionDelay, func() {
		defer m.bgWG.Done()
		m.Expand(m.bgCtx)
	})
}

func (m *Manager) stopTimer() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.timer != nil && m.timer.Stop() {
		m.bgWG.Done()
	}
	m.timer = nil
}

// Expand runs one background expansion pass: when the snapshot is stale it
// first refreshes clients and document types, then it loads the subjects of
// up to one batch of clients that have none cached, one client at a time
// with a pause in between. It returns false without doing anything when a
// pass is already running.
func (m *Manager) Expand(ctx context.Context) bool {
	if !m.updating.CompareAndSwap(false, true) {
		return false
	}
	defer m.updating.Store(false)

	snap := m.current()
	if snap == nil {
		return true
	}
	m.metrics.ExpansionRun()
	gen := m.Generation()

	if m.isStale(snap) {
		m.refreshRoots(ctx, gen)
		snap = m.current()
		if snap == nil {
			return true
		}
	}

	withSubjects := make(map[string]struct{}, len(snap.Subjects))
	for _, s := range snap.Subjects {
		withSubjects[s.ParentID] = struct{}{}
	}

	pending := make([]lookup.Record, 0, m.expansionBatch)
	for _, c := range snap.Clients {
		if _, ok := withSubjects[c.ID]; ok {
			continue
		}
		pending = append(pending, c)
		if len(pending) == m.expansionBatch {
			break
		}
	}

	for _, client := range pending {
		if ctx.Err() != nil || m.Generation() != gen {
			return true
		}
		parent := lookup.Parent{ID: client.ID, Title: client.Title}
		m.flight(ctx, flightKey(gen, lookup.Subjects, client.ID), func(ctx context.Context) []lookup.Record {
			return m.loadChildren(ctx, gen, lookup.Subjects, parent)
		})
		if !sleep(ctx, m.expansionPause) {
			return true
		}
	}
	m.logger.Debug("cache expansion finished", "clients", len(pending))
	return true
}

// refreshRoots reloads clients and document types, keeping every cached
// dependent record.
func (m *Manager) refreshRoots(ctx context.Context, gen uint64) {
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
		m.logger.Warn("failed to refresh stale cache", "error", err)
		return
	}

	m.mu.Lock()
	if m.generation != gen || m.snapshot == nil {
		m.mu.Unlock()
		m.metrics.DiscardedMerge()
		return
	}
	next := m.snapshot.with(lookup.Clients, lookup.Sorted(dedupe(clients)))
	next = next.with(lookup.DocumentTypes, lookup.Sorted(dedupe(docTypes)))
	next.LastUpdated = m.now()
	m.snapshot = next
	m.mu.Unlock()

	m.observe(next)
	m.persist()
	m.logger.Info("stale cache refreshed", "clients", len(clients), "document_types", len(docTypes))
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
