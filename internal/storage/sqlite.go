package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dshills/docfind-mcp/pkg/types"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	dimension int
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// A single pooled connection: SQLite benefits from a single writer,
	// and an in-memory database would lose its schema on any reconnect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens (or creates) a documentation database at dbPath.
// dimension is the embedding width every insert must match; 0 selects the
// default 384.
func NewSQLiteStore(dbPath string, dimension int) (*SQLiteStore, error) {
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath, dimension: dimension}, nil
}

// DefaultDimension is the embedding width of the default model.
const DefaultDimension = 384

// Initialize creates or migrates the schema.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	if err := ApplyMigrations(ctx, s.db); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Dimension returns the embedding width this store accepts.
func (s *SQLiteStore) Dimension() int {
	return s.dimension
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *SQLiteStore) querier() querier {
	return s.db
}

// Chunk operations

// insertChunkWithQuerier writes the chunk row and its vector row. The FTS
// entry is maintained by trigger, so all three projections land in the
// caller's transaction.
func (s *SQLiteStore) insertChunkWithQuerier(ctx context.Context, q querier, chunk *types.Chunk, embedding []float32) error {
	if err := chunk.Validate(); err != nil {
		return err
	}
	if len(embedding) != s.dimension {
		return fmt.Errorf("%w: got %d, want %d", types.ErrDimensionMismatch, len(embedding), s.dimension)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO chunks (id, content, source_file, section_heading, chunk_position, token_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, chunk.ID, chunk.Content, chunk.SourceFile, chunk.SectionHeading,
		chunk.Position, chunk.TokenCount, chunk.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO chunk_vectors (chunk_id, embedding, dimension)
		VALUES (?, ?, ?)
	`, chunk.ID, serializeVector(embedding), len(embedding))
	if err != nil {
		return fmt.Errorf("failed to insert embedding: %w", err)
	}

	return nil
}

// InsertChunk atomically writes a chunk with its embedding and FTS entry.
func (s *SQLiteStore) InsertChunk(ctx context.Context, chunk *types.Chunk, embedding []float32) error {
	return s.InsertBatch(ctx, []*types.Chunk{chunk}, [][]float32{embedding})
}

// InsertBatch writes a batch of chunks in a single transaction. Any
// failure rolls back the whole batch.
func (s *SQLiteStore) InsertBatch(ctx context.Context, chunks []*types.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk count %d does not match embedding count %d", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, chunk := range chunks {
		if err := s.insertChunkWithQuerier(ctx, tx, chunk, embeddings[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// getChunkWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStore) getChunkWithQuerier(ctx context.Context, q querier, id string) (*types.Chunk, error) {
	var chunk types.Chunk
	var createdAt string
	err := q.QueryRowContext(ctx, `
		SELECT id, content, source_file, section_heading, chunk_position, token_count, created_at
		FROM chunks
		WHERE id = ?
	`, id).Scan(&chunk.ID, &chunk.Content, &chunk.SourceFile, &chunk.SectionHeading,
		&chunk.Position, &chunk.TokenCount, &createdAt)
	if err == sql.ErrNoRows {
		return nil, types.ErrChunkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}

	if ts, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		chunk.CreatedAt = ts
	}
	return &chunk, nil
}

// GetChunk fetches a chunk by ID.
func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*types.Chunk, error) {
	return s.getChunkWithQuerier(ctx, s.querier(), id)
}

// Search operations

// clampLimit keeps result limits inside the supported window.
func clampLimit(limit int) int {
	if limit < types.MinQueryLimit {
		return types.MinQueryLimit
	}
	if limit > types.MaxQueryLimit {
		return types.MaxQueryLimit
	}
	return limit
}

// SemanticSearch returns chunks nearest to queryVector by cosine distance.
func (s *SQLiteStore) SemanticSearch(ctx context.Context, queryVector []float32, limit int) ([]types.SearchResult, error) {
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", types.ErrDimensionMismatch, len(queryVector), s.dimension)
	}
	limit = clampLimit(limit)

	hits, err := searchVector(ctx, s.db, queryVector, limit)
	if err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, len(hits))
	for _, hit := range hits {
		chunk, err := s.GetChunk(ctx, hit.ChunkID)
		if err != nil {
			return nil, err
		}
		results = append(results, types.SearchResult{
			Chunk:     chunk,
			Score:     hit.SimilarityScore,
			MatchType: types.MatchSemantic,
		})
	}
	return results, nil
}

// KeywordSearch returns BM25-ranked full-text matches.
func (s *SQLiteStore) KeywordSearch(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.ErrEmptyQuery
	}
	limit = clampLimit(limit)

	hits, err := searchText(ctx, s.db, query, limit)
	if err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, len(hits))
	for _, hit := range hits {
		chunk, err := s.GetChunk(ctx, hit.ChunkID)
		if err != nil {
			return nil, err
		}
		results = append(results, types.SearchResult{
			Chunk:     chunk,
			Score:     hit.BM25Score,
			MatchType: types.MatchKeyword,
		})
	}
	return results, nil
}

// Metadata operations

// UpdateMetadata replaces the metadata singleton row.
func (s *SQLiteStore) UpdateMetadata(ctx context.Context, meta *types.Metadata) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (id, sources_summary, local_path, last_sync, total_files, total_chunks)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sources_summary = excluded.sources_summary,
			local_path = excluded.local_path,
			last_sync = excluded.last_sync,
			total_files = excluded.total_files,
			total_chunks = excluded.total_chunks
	`, meta.SourcesSummary, meta.LocalPath, meta.LastSync.UTC().Format(time.RFC3339Nano),
		meta.TotalFiles, meta.TotalChunks)
	if err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}
	return nil
}

// GetMetadata reads the metadata singleton row.
func (s *SQLiteStore) GetMetadata(ctx context.Context) (*types.Metadata, error) {
	var meta types.Metadata
	var lastSync sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT sources_summary, local_path, last_sync, total_files, total_chunks
		FROM metadata
		WHERE id = 1
	`).Scan(&meta.SourcesSummary, &meta.LocalPath, &lastSync, &meta.TotalFiles, &meta.TotalChunks)
	if err == sql.ErrNoRows {
		return nil, types.ErrDatabaseNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}

	if lastSync.Valid {
		if ts, perr := time.Parse(time.RFC3339Nano, lastSync.String); perr == nil {
			meta.LastSync = ts
		}
	}
	return &meta, nil
}

// Stats reports corpus totals.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT source_file) FROM chunks",
	).Scan(&stats.TotalChunks, &stats.TotalFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}

	if s.path != "" && s.path != ":memory:" {
		if fi, err := os.Stat(s.path); err == nil {
			stats.SizeBytes = fi.Size()
		}
	}
	return &stats, nil
}

// HealthCheck reports whether the database has the expected schema and at
// least one indexed chunk.
func (s *SQLiteStore) HealthCheck(ctx context.Context) bool {
	for _, table := range RequiredTables {
		var name string
		err := s.db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			return false
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return false
	}
	return count > 0
}
