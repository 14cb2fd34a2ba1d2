// Package pipeline runs the full documentation build: sync sources,
// parse documents into sections, chunk under token budgets, embed, and
// persist into a store.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/docfind-mcp/internal/chunker"
	"github.com/dshills/docfind-mcp/internal/embedder"
	"github.com/dshills/docfind-mcp/internal/fetcher"
	"github.com/dshills/docfind-mcp/internal/parser"
	"github.com/dshills/docfind-mcp/internal/storage"
	"github.com/dshills/docfind-mcp/pkg/types"
)

const defaultBatchSize = 32

// Config tunes pipeline concurrency and persistence batching.
type Config struct {
	Workers   int // concurrent parse/chunk workers, default NumCPU
	BatchSize int // chunks embedded and inserted per batch, default 32
}

// Pipeline wires the build stages together. The store is passed to Build
// rather than held, so refreshes can target a candidate database while
// queries keep the active one.
type Pipeline struct {
	fetch     *fetcher.Fetcher
	sources   *fetcher.Sources
	parser    *parser.Parser
	chunker   *chunker.Chunker
	embed     embedder.Embedder
	workers   int
	batchSize int
	log       *slog.Logger
}

// New creates a Pipeline.
func New(fetch *fetcher.Fetcher, sources *fetcher.Sources, chunk *chunker.Chunker,
	embed embedder.Embedder, cfg Config, log *slog.Logger) *Pipeline {

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		fetch:     fetch,
		sources:   sources,
		parser:    parser.New(),
		chunker:   chunk,
		embed:     embed,
		workers:   cfg.Workers,
		batchSize: cfg.BatchSize,
		log:       log,
	}
}

// Build runs the full pipeline into store. Individual document failures
// are logged and counted; Build fails only when nothing at all could be
// indexed.
func (p *Pipeline) Build(ctx context.Context, store storage.Store) (*types.BuildStats, error) {
	start := time.Now()
	stats := &types.BuildStats{}

	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	files, syncStats, err := p.fetch.Sync(ctx, p.sources)
	if err != nil {
		return nil, fmt.Errorf("source sync failed: %w", err)
	}
	stats.Sync = syncStats

	chunks, parsed, failedDocs := p.parseAndChunk(ctx, files)
	stats.DocumentsParsed = parsed
	stats.DocumentsFailed = failedDocs

	if len(chunks) == 0 {
		return stats, fmt.Errorf("build produced no chunks from %d files", len(files))
	}

	if err := p.embedAndPersist(ctx, store, chunks); err != nil {
		return stats, err
	}
	stats.ChunksCreated = len(chunks)

	meta := &types.Metadata{
		SourcesSummary: summarizeSources(p.sources),
		LocalPath:      "",
		LastSync:       time.Now().UTC(),
		TotalFiles:     parsed,
		TotalChunks:    len(chunks),
	}
	if err := store.UpdateMetadata(ctx, meta); err != nil {
		return stats, fmt.Errorf("failed to update metadata: %w", err)
	}

	stats.Duration = time.Since(start)
	p.log.Info("build complete",
		"files", parsed, "failed", failedDocs,
		"chunks", len(chunks), "duration", stats.Duration)
	return stats, nil
}

// parseAndChunk runs parse and chunk over the synced files with a
// bounded worker pool. Chunk order follows file order so positions and
// batches stay deterministic.
func (p *Pipeline) parseAndChunk(ctx context.Context, files []string) ([]*types.Chunk, int, int) {
	perFile := make([][]*types.Chunk, len(files))
	var parsed, failed atomic.Int32
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, file := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			doc, err := p.parser.ParseFile(file)
			if err != nil {
				p.log.Warn("document parse failed", "file", file, "error", err)
				failed.Add(1)
				return nil
			}

			chunks, err := p.chunker.ChunkDocument(doc)
			if err != nil {
				p.log.Warn("document chunking failed", "file", file, "error", err)
				failed.Add(1)
				return nil
			}

			mu.Lock()
			perFile[i] = chunks
			mu.Unlock()
			parsed.Add(1)
			return nil
		})
	}
	// Workers only return context errors; per-document failures are counted.
	_ = g.Wait()

	var all []*types.Chunk
	for _, chunks := range perFile {
		all = append(all, chunks...)
	}
	return all, int(parsed.Load()), int(failed.Load())
}

// embedAndPersist embeds chunks batch by batch and writes each batch in
// one transaction.
func (p *Pipeline) embedAndPersist(ctx context.Context, store storage.Store, chunks []*types.Chunk) error {
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		embeddings, err := p.embed.GenerateBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch failed: %w", err)
		}

		if err := store.InsertBatch(ctx, batch, embeddings); err != nil {
			return fmt.Errorf("failed to persist batch: %w", err)
		}
	}
	return nil
}

func summarizeSources(src *fetcher.Sources) string {
	return fmt.Sprintf("%d websites, %d github repos", len(src.Websites), len(src.GitHub))
}
