// Package refresh rebuilds the documentation database on demand and on a
// schedule.
//
// A refresh builds a complete candidate database at a temporary path,
// verifies and atomically promotes it over the active file, then
// invalidates the query path's store handle and response cache. At most
// one refresh runs at a time; a concurrent attempt fails fast with
// types.ErrRefreshInProgress rather than queueing.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/docfind-mcp/internal/dbmanager"
	"github.com/dshills/docfind-mcp/internal/storage"
	"github.com/dshills/docfind-mcp/pkg/types"
)

// Builder produces a fully populated documentation database in the given
// store. Satisfied by pipeline.Pipeline.
type Builder interface {
	Build(ctx context.Context, store storage.Store) (*types.BuildStats, error)
}

// cacheInvalidator is the slice of the search service the orchestrator
// needs after a swap.
type cacheInvalidator interface {
	InvalidateCache()
}

// Config holds orchestrator settings.
type Config struct {
	TempPath  string        // candidate database path, e.g. docs.db.new
	Dimension int           // embedding dimension for the candidate store
	Interval  time.Duration // scheduler period, default 24h
	Cron      string        // optional cron expression; wins over Interval
}

// DefaultInterval is the scheduler period when none is configured.
const DefaultInterval = 24 * time.Hour

// Orchestrator coordinates rebuild, swap, and query-path invalidation.
type Orchestrator struct {
	pipe    Builder
	manager *dbmanager.Manager
	stores  *StoreManager
	cache   cacheInvalidator
	cfg     Config
	log     *slog.Logger

	lock refreshLock

	mu   sync.RWMutex
	last *types.RefreshResult

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates an Orchestrator. cache may be nil when no search service
// is attached (the build CLI path).
func New(pipe Builder, manager *dbmanager.Manager, stores *StoreManager,
	cache cacheInvalidator, cfg Config, log *slog.Logger) *Orchestrator {

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		pipe:    pipe,
		manager: manager,
		stores:  stores,
		cache:   cache,
		cfg:     cfg,
		log:     log,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// RefreshOnce runs one rebuild-and-swap cycle. A refresh already in
// flight fails immediately with types.ErrRefreshInProgress.
func (o *Orchestrator) RefreshOnce(ctx context.Context) (*types.RefreshResult, error) {
	if !o.lock.TryAcquire() {
		return nil, types.ErrRefreshInProgress
	}
	defer o.lock.Release()

	result := &types.RefreshResult{StartedAt: time.Now().UTC()}
	chunkCount, err := o.rebuild(ctx)

	result.CompletedAt = time.Now().UTC()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	result.ChunkCount = chunkCount
	if err != nil {
		result.Error = err.Error()
		o.log.Error("refresh failed", "error", err, "duration", result.Duration)
	} else {
		result.Success = true
		o.log.Info("refresh complete", "chunks", chunkCount, "duration", result.Duration)
	}

	o.mu.Lock()
	o.last = result
	o.mu.Unlock()

	if err != nil {
		return result, err
	}
	return result, nil
}

// rebuild builds the candidate database and promotes it.
func (o *Orchestrator) rebuild(ctx context.Context) (int, error) {
	// Leftovers from an interrupted run (the candidate file or its WAL
	// sidecars) would be recovered into the fresh build.
	if err := o.manager.CleanupStaleDatabases(); err != nil {
		return 0, fmt.Errorf("stale database cleanup failed: %w", err)
	}
	if err := os.Remove(o.cfg.TempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("failed to remove stale candidate: %w", err)
	}

	candidate, err := storage.NewSQLiteStore(o.cfg.TempPath, o.cfg.Dimension)
	if err != nil {
		return 0, fmt.Errorf("failed to open candidate database: %w", err)
	}

	stats, err := o.pipe.Build(ctx, candidate)
	if cerr := candidate.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("candidate build failed: %w", err)
	}

	// The rename sequence runs exclusively with query-path store use, and
	// the old handle is retired in the same critical section so the next
	// query reopens the promoted file.
	if err := o.stores.Swap(func() error {
		return o.manager.SwapDatabase(ctx, o.cfg.TempPath)
	}); err != nil {
		return 0, err
	}

	if o.cache != nil {
		o.cache.InvalidateCache()
	}

	return stats.ChunksCreated, nil
}

// LastResult returns the outcome of the most recent refresh, or nil when
// none has run yet.
func (o *Orchestrator) LastResult() *types.RefreshResult {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.last == nil {
		return nil
	}
	out := *o.last
	return &out
}

// InProgress reports whether a refresh is currently running.
func (o *Orchestrator) InProgress() bool {
	if o.lock.TryAcquire() {
		o.lock.Release()
		return false
	}
	return true
}
