package cache

import (
	"errors"

	"github.com/docfiler/docfiler/internal/kvstore"
)

// load reads the persisted snapshot. Any read, decode or version problem is
// reported as "no snapshot".
func (m *Manager) load() (*Snapshot, bool) {
	raw, ok, err := m.store.Read(m.storageKey)
	if err != nil {
		if errors.Is(err, kvstore.ErrCorrupt) {
			m.logger.Warn("persisted cache is corrupt, rebuilding", "error", err)
		} else {
			m.logger.Warn("failed to read persisted cache", "error", err)
		}
		return nil, false
	}
	if !ok || raw == "" {
		return nil, false
	}

	snap, err := decodeSnapshot(raw)
	if err != nil {
		m.logger.Warn("persisted cache is unreadable, rebuilding", "error", err)
		return nil, false
	}
	if snap.Version != m.version {
		m.logger.Info("persisted cache version mismatch, rebuilding", "found", snap.Version, "want", m.version)
		return nil, false
	}
	return snap, true
}

// persist writes the current snapshot. Failures leave the cache memory-only.
func (m *Manager) persist() {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	snap := m.current()
	if snap == nil {
		return
	}

	raw, err := encodeSnapshot(snap)
	if err == nil {
		err = m.store.Write(m.storageKey, raw)
	}
	if err != nil {
		m.metrics.PersistFailure()
		if errors.Is(err, kvstore.ErrQuotaExceeded) {
			m.logger.Warn("cache exceeds local storage quota, keeping it in memory", "bytes", len(raw))
			return
		}
		m.logger.Warn("failed to persist cache", "error", err)
	}
}
