package refresh

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/docfind-mcp/internal/storage"
)

// StoreManager owns the query path's store handle and the lock that makes
// database swaps mutually exclusive with query-path store use. Queries
// borrow the handle under the read side of the lock; a swap takes the
// write side, so no reader ever observes the active file mid-rename or a
// handle closed underneath an in-flight query.
type StoreManager struct {
	path      string
	dimension int

	mu    sync.RWMutex
	store storage.Store
}

// NewStoreManager creates a manager for the active database path.
func NewStoreManager(path string, dimension int) *StoreManager {
	return &StoreManager{path: path, dimension: dimension}
}

// WithStore runs fn against the current store handle, holding the shared
// lock for the duration of the call. The handle opens lazily on first
// use. The signature matches searcher.StoreProvider.
func (m *StoreManager) WithStore(ctx context.Context, fn func(storage.Store) error) error {
	for {
		m.mu.RLock()
		if store := m.store; store != nil {
			err := fn(store)
			m.mu.RUnlock()
			return err
		}
		m.mu.RUnlock()

		if err := m.open(); err != nil {
			return err
		}
	}
}

// open resolves the handle under the write lock. Another goroutine may
// have opened one first; that handle wins.
func (m *StoreManager) open() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store != nil {
		return nil
	}
	store, err := storage.NewSQLiteStore(m.path, m.dimension)
	if err != nil {
		return fmt.Errorf("failed to open active database: %w", err)
	}
	m.store = store
	return nil
}

// Swap runs the given rename sequence exclusively with store use, then
// retires the current handle so the next access reopens the promoted
// file. On failure the handle is kept: the active file was not replaced.
func (m *StoreManager) Swap(swap func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := swap(); err != nil {
		return err
	}
	if m.store != nil {
		_ = m.store.Close()
		m.store = nil
	}
	return nil
}

// Close releases the handle for good.
func (m *StoreManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	err := m.store.Close()
	m.store = nil
	return err
}
