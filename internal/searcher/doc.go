// Package searcher answers documentation queries over the storage layer.
//
// Three retrieval strategies are supported:
//
//   - semantic: embed the query text and rank by cosine similarity
//   - keyword: FTS5 BM25 full-text match
//   - hybrid: both legs run concurrently and are fused with Reciprocal
//     Rank Fusion
//
// # Hybrid Fusion
//
// Each leg of a hybrid query fetches twice the requested limit. Fusion
// scores every appearance as 1/(k + rank) with rank starting at 1 and
// k = 60 by default; a chunk surfaced by both legs sums both contributions
// and is reported with match type "hybrid". Fused scores are clipped to
// 1.0 before the optional min_score filter and the final truncation to
// the requested limit.
//
// # Store Resolution
//
// The service borrows its store through a StoreProvider for the duration
// of each query. Scheduled refreshes swap the database file underneath
// the query path under the same lock, so a query never observes the file
// mid-rename and the next query picks up the promoted file without a
// restart.
//
// # Caching
//
// Responses are cached in a bounded LRU keyed by a hash of the query
// parameters, with a one hour TTL. InvalidateCache drops everything after
// a database swap.
package searcher
