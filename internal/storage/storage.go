package storage

import (
	"context"

	"github.com/dshills/docfind-mcp/pkg/types"
)

// RequiredTables must all exist before a database file is accepted as a
// usable documentation index. The swap protocol verifies them on every
// candidate before promotion.
var RequiredTables = []string{"chunks", "chunk_vectors", "metadata"}

// VectorResult is a semantic search hit before chunk hydration.
type VectorResult struct {
	ChunkID         string
	SimilarityScore float64
}

// TextResult is a keyword search hit before chunk hydration.
type TextResult struct {
	ChunkID   string
	BM25Score float64
}

// Stats describes the indexed corpus.
type Stats struct {
	TotalChunks int
	TotalFiles  int
	SizeBytes   int64
}

// Store is the persistence interface for documentation chunks and their
// vector and lexical projections.
type Store interface {
	// Initialize creates or migrates the schema.
	Initialize(ctx context.Context) error

	// InsertChunk atomically writes a chunk, its embedding, and its FTS
	// entry. No partial state remains on failure.
	InsertChunk(ctx context.Context, chunk *types.Chunk, embedding []float32) error

	// InsertBatch writes a batch of chunks and embeddings in one transaction.
	InsertBatch(ctx context.Context, chunks []*types.Chunk, embeddings [][]float32) error

	// GetChunk fetches a chunk by ID; types.ErrChunkNotFound when absent.
	GetChunk(ctx context.Context, id string) (*types.Chunk, error)

	// SemanticSearch returns the chunks nearest to queryVector by cosine
	// distance, scored as similarity in [0, 1].
	SemanticSearch(ctx context.Context, queryVector []float32, limit int) ([]types.SearchResult, error)

	// KeywordSearch returns BM25-ranked full-text matches scored in (0, 1].
	KeywordSearch(ctx context.Context, query string, limit int) ([]types.SearchResult, error)

	// UpdateMetadata replaces the metadata singleton.
	UpdateMetadata(ctx context.Context, meta *types.Metadata) error

	// GetMetadata reads the metadata singleton.
	GetMetadata(ctx context.Context) (*types.Metadata, error)

	// Stats reports corpus totals.
	Stats(ctx context.Context) (*Stats, error)

	// HealthCheck reports whether the database is initialized and populated.
	HealthCheck(ctx context.Context) bool

	// Close releases the underlying connection.
	Close() error
}
