// Package storage provides SQLite-backed persistence for documentation
// chunks and their vector and lexical search projections.
//
// A single database file holds three synchronized projections of the
// corpus:
//
//   - chunks: the chunk rows themselves (UUID keys, content, source file,
//     section heading, position, token count)
//   - chunk_vectors: embeddings serialized as little-endian float32 blobs
//   - chunks_fts: an FTS5 index (porter unicode61) over content and
//     headings, maintained by trigger
//
// plus a singleton metadata row describing the indexed corpus.
//
// # Atomicity
//
// InsertChunk and InsertBatch write the chunk row and its embedding inside
// one transaction; the FTS entry is produced by an AFTER INSERT trigger in
// the same transaction. A failed embedding write therefore leaves no chunk
// row, and a chunk is never searchable through one projection but not the
// other.
//
// # Scoring
//
// Semantic search maps cosine distance (range [0, 2]) into a similarity
// score with 1 - distance/2. Keyword search maps FTS5 BM25 ranks (negative,
// lower is better) into (0, 1] with 1 / (1 + |rank|).
//
// # Build Modes
//
// Two build configurations select the SQLite driver (see build_purego.go
// and build_cgo.go). With the sqlite_vec tag, distances are computed in SQL
// by the sqlite-vec extension; the pure Go build scans embeddings and
// computes cosine similarity in Go. Both produce identical scores.
//
// # Connections
//
// Each store holds one *sql.DB pinned to a single connection. In-memory
// databases require this to keep their schema alive; file-backed stores
// simply benefit from SQLite's single-writer model.
package storage
