// Package integration exercises the full build → swap → search path with
// a live HTTP documentation source and the mock embedding provider.
package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docfind-mcp/internal/chunker"
	"github.com/dshills/docfind-mcp/internal/dbmanager"
	"github.com/dshills/docfind-mcp/internal/embedder"
	"github.com/dshills/docfind-mcp/internal/fetcher"
	"github.com/dshills/docfind-mcp/internal/pipeline"
	"github.com/dshills/docfind-mcp/internal/refresh"
	"github.com/dshills/docfind-mcp/internal/searcher"
	"github.com/dshills/docfind-mcp/internal/storage"
	"github.com/dshills/docfind-mcp/internal/tokenizer"
	"github.com/dshills/docfind-mcp/pkg/types"
)

// docsSite serves a small documentation corpus whose content can be
// swapped between refreshes.
type docsSite struct {
	mu    sync.Mutex
	pages map[string]string
}

func (d *docsSite) set(path, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pages[path] = content
}

func (d *docsSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	content, ok := d.pages[r.URL.Path]
	d.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	fmt.Fprint(w, content)
}

type env struct {
	site   *docsSite
	stores *refresh.StoreManager
	search *searcher.SearchService
	orch   *refresh.Orchestrator
	active string
}

func newEnv(t *testing.T) *env {
	t.Helper()

	site := &docsSite{pages: map[string]string{
		"/install.md": `# Installation

Download the docfind binary and place it on your PATH. The server reads
its configuration from config.yaml in the working directory.
`,
		"/search.md": `# Searching

## Query Types

Semantic queries embed the question and rank by vector similarity.
Keyword queries use full-text BM25 ranking. Hybrid queries fuse both.
`,
	}}
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	active := filepath.Join(dir, "docs.db")

	counter, err := tokenizer.NewTokenCounter()
	require.NoError(t, err)
	ck, err := chunker.New(counter, chunker.DefaultConfig())
	require.NoError(t, err)

	embed, err := embedder.New(embedder.Config{Provider: "mock", CacheSize: 100})
	require.NoError(t, err)
	t.Cleanup(func() { _ = embed.Close() })

	sources := &fetcher.Sources{
		Websites: []fetcher.WebsiteSource{
			{Name: "install", BaseURL: srv.URL + "/install.md", MaxPages: 1},
			{Name: "search", BaseURL: srv.URL + "/search.md", MaxPages: 1},
		},
	}
	fetch := fetcher.New(filepath.Join(dir, "cache"), log)

	pipe := pipeline.New(fetch, sources, ck, embed, pipeline.Config{BatchSize: 8}, log)
	manager := dbmanager.New(active, 1, log)
	stores := refresh.NewStoreManager(active, embedder.EmbeddingDimension)
	t.Cleanup(func() { _ = stores.Close() })
	search := searcher.NewSearchService(stores.WithStore, embed)

	orch := refresh.New(pipe, manager, stores, search, refresh.Config{
		TempPath:  filepath.Join(dir, "docs.db.new"),
		Dimension: embedder.EmbeddingDimension,
		Interval:  time.Hour,
	}, log)

	return &env{site: site, stores: stores, search: search, orch: orch, active: active}
}

func TestBuildAndSearchEndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	result, err := e.orch.RefreshOnce(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Positive(t, result.ChunkCount)
	assert.FileExists(t, e.active)

	// Keyword search finds the install page.
	resp, err := e.search.Query(ctx, &types.Query{
		Text: "binary PATH",
		Type: types.QueryKeyword,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Contains(t, resp.Results[0].Chunk.SourceFile, "install.md")

	// Semantic and hybrid paths answer with bounded scores.
	for _, qt := range []types.QueryType{types.QuerySemantic, types.QueryHybrid} {
		resp, err := e.search.Query(ctx, &types.Query{Text: "how do queries work", Type: qt})
		require.NoError(t, err)
		for _, r := range resp.Results {
			assert.GreaterOrEqual(t, r.Score, 0.0)
			assert.LessOrEqual(t, r.Score, 1.0)
		}
	}

	// Chunks surfaced by search are retrievable in full, with 1-indexed
	// ranks over the returned ordering.
	assert.Equal(t, 1, resp.Results[0].Rank)
	err = e.stores.WithStore(ctx, func(store storage.Store) error {
		chunk, gerr := store.GetChunk(ctx, resp.Results[0].Chunk.ID)
		if gerr != nil {
			return gerr
		}
		assert.Equal(t, resp.Results[0].Chunk.Content, chunk.Content)

		meta, gerr := store.GetMetadata(ctx)
		if gerr != nil {
			return gerr
		}
		assert.Equal(t, result.ChunkCount, meta.TotalChunks)
		assert.Equal(t, 2, meta.TotalFiles)
		return nil
	})
	require.NoError(t, err)
}

func TestRefreshPicksUpChangedContent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.orch.RefreshOnce(ctx)
	require.NoError(t, err)

	resp, err := e.search.Query(ctx, &types.Query{Text: "kubernetes", Type: types.QueryKeyword})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)

	e.site.set("/install.md", `# Installation

Deploy the server to kubernetes with the provided manifest.
`)

	result, err := e.orch.RefreshOnce(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)

	// The swap invalidated both the store handle and the response cache,
	// so the new corpus is visible without a restart.
	resp, err = e.search.Query(ctx, &types.Query{Text: "kubernetes", Type: types.QueryKeyword})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Contains(t, resp.Results[0].Chunk.Content, "kubernetes")

	// The previous database survived as exactly one backup.
	backups, err := filepath.Glob(e.active + ".backup-*")
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConcurrentQueriesDuringRefresh(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.orch.RefreshOnce(ctx)
	require.NoError(t, err)

	// Queries racing a refresh must never observe a missing database.
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			_, err := e.search.Query(ctx, &types.Query{Text: "configuration", Type: types.QueryKeyword})
			assert.NoError(t, err)
		}
	}()

	for range 3 {
		_, err := e.orch.RefreshOnce(ctx)
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()
}
