// Package state implements optimistic mutation of the local aggregate:
// snapshot, speculative apply, then commit or rollback. Every mutating
// operation in the engine goes through this primitive, which also
// serializes writers per scope so concurrent syncs cannot interleave
// their writes and lose updates.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mrlokans/stagesync/internal/profilestore"
)

var ErrSnapshotResolved = errors.New("snapshot already committed or rolled back")

// Manager coordinates per-scope locks over the aggregate store.
type Manager struct {
	store *profilestore.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a state manager over the given aggregate store.
func NewManager(store *profilestore.Store) *Manager {
	return &Manager{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// Snapshot captures the pre-mutation value of one scope. It must be
// resolved exactly once, with Commit or Rollback; the scope stays locked
// until then.
type Snapshot struct {
	Scope string

	manager  *Manager
	prior    string
	resolved bool
}

func (m *Manager) scopeLock(scope string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[scope]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[scope] = lock
	}
	return lock
}

// Begin locks the scope and snapshots its current value. A second Begin
// for the same scope blocks until the first snapshot resolves.
func (m *Manager) Begin(scope string) (*Snapshot, error) {
	lock := m.scopeLock(scope)
	lock.Lock()

	prior, err := m.store.Get(scope)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("failed to snapshot scope %q: %w", scope, err)
	}

	return &Snapshot{Scope: scope, manager: m, prior: prior}, nil
}

// Prior returns the value captured when the snapshot was taken.
func (s *Snapshot) Prior() string {
	return s.prior
}

// Apply writes a speculative value to the scope. Reads see it
// immediately; Rollback undoes it.
func (s *Snapshot) Apply(payload string) error {
	if s.resolved {
		return ErrSnapshotResolved
	}
	return s.manager.store.Put(s.Scope, payload)
}

// Commit keeps whatever value the scope currently holds and releases the
// scope lock.
func (s *Snapshot) Commit() error {
	if s.resolved {
		return ErrSnapshotResolved
	}
	s.resolved = true
	s.manager.scopeLock(s.Scope).Unlock()
	return nil
}

// Rollback restores the pre-mutation value and releases the scope lock.
func (s *Snapshot) Rollback() error {
	if s.resolved {
		return ErrSnapshotResolved
	}
	s.resolved = true

	err := s.manager.store.Put(s.Scope, s.prior)
	s.manager.scopeLock(s.Scope).Unlock()
	if err != nil {
		return fmt.Errorf("failed to restore scope %q: %w", s.Scope, err)
	}
	return nil
}
