package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/docfind-mcp/internal/embedder"
	"github.com/dshills/docfind-mcp/internal/storage"
	"github.com/dshills/docfind-mcp/pkg/types"
)

const (
	// DefaultRRFConstant is the k value for Reciprocal Rank Fusion
	DefaultRRFConstant = 60.0

	// hybridFetchFactor oversamples each leg so fusion has enough
	// candidates to reorder before truncating to the requested limit.
	hybridFetchFactor = 2

	// Query cache sizing
	cacheEntries    = 1000
	defaultCacheTTL = time.Hour
)

// StoreProvider grants scoped access to the current documentation store.
// The refresh orchestrator swaps database files underneath the query
// path, so each query borrows a handle for just that call, under a lock
// shared with the swap, instead of capturing one at construction.
type StoreProvider func(ctx context.Context, fn func(storage.Store) error) error

// StaticStore wraps a fixed store as a StoreProvider, for callers that
// never swap databases.
func StaticStore(store storage.Store) StoreProvider {
	return func(_ context.Context, fn func(storage.Store) error) error {
		return fn(store)
	}
}

// cacheEntry is a cached query response with expiration time
type cacheEntry struct {
	response  *types.QueryResponse
	expiresAt time.Time
}

// SearchService answers semantic, keyword, and hybrid queries against the
// documentation store.
type SearchService struct {
	provider StoreProvider
	embedder embedder.Embedder
	rrfK     float64
	cacheTTL time.Duration

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// Option configures a SearchService.
type Option func(*SearchService)

// WithRRFConstant overrides the fusion constant k.
func WithRRFConstant(k float64) Option {
	return func(s *SearchService) {
		if k > 0 {
			s.rrfK = k
		}
	}
}

// WithCacheTTL overrides how long query responses stay cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *SearchService) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// NewSearchService creates a SearchService.
func NewSearchService(provider StoreProvider, emb embedder.Embedder, opts ...Option) *SearchService {
	cache, err := lru.New[[32]byte, *cacheEntry](cacheEntries)
	if err != nil {
		// Cannot happen with a positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	s := &SearchService{
		provider: provider,
		embedder: emb,
		rrfK:     DefaultRRFConstant,
		cacheTTL: defaultCacheTTL,
		cache:    cache,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query validates and executes a search request.
func (s *SearchService) Query(ctx context.Context, q *types.Query) (*types.QueryResponse, error) {
	start := time.Now()

	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if cached := s.checkCache(q); cached != nil {
		cached.ExecutionMs = time.Since(start).Milliseconds()
		return cached, nil
	}

	var results []types.SearchResult
	err := s.provider(ctx, func(store storage.Store) error {
		var serr error
		switch q.Type {
		case types.QuerySemantic:
			results, serr = s.semanticSearch(ctx, store, q)
		case types.QueryKeyword:
			results, serr = store.KeywordSearch(ctx, q.Text, q.Limit)
		case types.QueryHybrid:
			results, serr = s.hybridSearch(ctx, store, q)
		default:
			serr = types.ErrInvalidQueryType
		}
		return serr
	})
	if err != nil {
		return nil, err
	}

	results = filterMinScore(results, q.MinScore)
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}

	// Ranks are 1-indexed over the final ordering, after fusion,
	// filtering, and truncation.
	for i := range results {
		results[i].Rank = i + 1
	}

	response := &types.QueryResponse{
		Results:     results,
		TotalCount:  len(results),
		QueryText:   q.Text,
		QueryType:   q.Type,
		ExecutionMs: time.Since(start).Milliseconds(),
	}

	if len(results) > 0 {
		s.storeInCache(q, response)
	}
	return response, nil
}

// semanticSearch embeds the query text and searches by vector.
func (s *SearchService) semanticSearch(ctx context.Context, store storage.Store, q *types.Query) ([]types.SearchResult, error) {
	vec, err := s.embedder.GenerateEmbedding(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	return store.SemanticSearch(ctx, vec, q.Limit)
}

// legResult holds the outcome of one concurrent search leg
type legResult struct {
	results []types.SearchResult
	err     error
}

// hybridSearch runs the semantic and keyword legs concurrently, each
// fetching hybridFetchFactor times the requested limit, then fuses them
// with Reciprocal Rank Fusion.
func (s *SearchService) hybridSearch(ctx context.Context, store storage.Store, q *types.Query) ([]types.SearchResult, error) {
	fetchLimit := q.Limit * hybridFetchFactor
	if fetchLimit > types.MaxQueryLimit {
		fetchLimit = types.MaxQueryLimit
	}

	semanticChan := make(chan legResult, 1)
	keywordChan := make(chan legResult, 1)

	go func() {
		var res legResult
		vec, err := s.embedder.GenerateEmbedding(ctx, q.Text)
		if err != nil {
			res.err = fmt.Errorf("failed to generate query embedding: %w", err)
		} else {
			res.results, res.err = store.SemanticSearch(ctx, vec, fetchLimit)
		}
		select {
		case semanticChan <- res:
		case <-ctx.Done():
		}
	}()

	go func() {
		var res legResult
		res.results, res.err = store.KeywordSearch(ctx, q.Text, fetchLimit)
		select {
		case keywordChan <- res:
		case <-ctx.Done():
		}
	}()

	var semanticRes, keywordRes legResult
	var semanticDone, keywordDone bool
	for !semanticDone || !keywordDone {
		select {
		case semanticRes = <-semanticChan:
			semanticDone = true
		case keywordRes = <-keywordChan:
			keywordDone = true
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// One leg may fail without failing the query
	if semanticRes.err != nil && keywordRes.err != nil {
		return nil, fmt.Errorf("both searches failed: semantic=%w, keyword=%v", semanticRes.err, keywordRes.err)
	}

	return s.applyRRF(semanticRes.results, keywordRes.results), nil
}

// applyRRF fuses the two result lists. Each appearance contributes
// 1/(k + rank) with rank starting at 1; a chunk found by both legs sums
// both contributions and is marked as a hybrid match. Fused scores are
// clipped to 1.0.
func (s *SearchService) applyRRF(semantic, keyword []types.SearchResult) []types.SearchResult {
	type fused struct {
		result types.SearchResult
		score  float64
		both   bool
	}

	merged := make(map[string]*fused, len(semantic)+len(keyword))

	for rank, r := range semantic {
		merged[r.Chunk.ID] = &fused{
			result: r,
			score:  1.0 / (s.rrfK + float64(rank+1)),
		}
	}

	for rank, r := range keyword {
		contribution := 1.0 / (s.rrfK + float64(rank+1))
		if f, ok := merged[r.Chunk.ID]; ok {
			f.score += contribution
			f.both = true
		} else {
			merged[r.Chunk.ID] = &fused{result: r, score: contribution}
		}
	}

	results := make([]types.SearchResult, 0, len(merged))
	for _, f := range merged {
		score := f.score
		if score > 1.0 {
			score = 1.0
		}

		matchType := f.result.MatchType
		if f.both {
			matchType = types.MatchHybrid
		}

		results = append(results, types.SearchResult{
			Chunk:     f.result.Chunk,
			Score:     score,
			MatchType: matchType,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// filterMinScore drops results under the requested threshold.
func filterMinScore(results []types.SearchResult, minScore *float64) []types.SearchResult {
	if minScore == nil {
		return results
	}

	filtered := results[:0]
	for _, r := range results {
		if r.Score >= *minScore {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// checkCache returns a copy of a live cached response, or nil.
func (s *SearchService) checkCache(q *types.Query) *types.QueryResponse {
	hash := computeQueryHash(q)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}

	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}

	response := copyResponse(entry.response)
	s.cacheMu.RUnlock()
	return response
}

// storeInCache saves a query response.
func (s *SearchService) storeInCache(q *types.Query, response *types.QueryResponse) {
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: time.Now().Add(s.cacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(q), entry)
	s.cacheMu.Unlock()
}

// InvalidateCache drops every cached response. Called after a database
// swap so stale chunks never surface.
func (s *SearchService) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// copyResponse creates a deep copy of a QueryResponse
func copyResponse(src *types.QueryResponse) *types.QueryResponse {
	if src == nil {
		return nil
	}

	dst := &types.QueryResponse{
		TotalCount:  src.TotalCount,
		QueryText:   src.QueryText,
		QueryType:   src.QueryType,
		ExecutionMs: src.ExecutionMs,
		Results:     make([]types.SearchResult, len(src.Results)),
	}

	for i, r := range src.Results {
		dst.Results[i] = r
		if r.Chunk != nil {
			chunkCopy := *r.Chunk
			dst.Results[i].Chunk = &chunkCopy
		}
	}
	return dst
}

// computeQueryHash computes a unique hash for a query
func computeQueryHash(q *types.Query) [32]byte {
	var data strings.Builder
	data.WriteString(q.Text)
	data.WriteString("|")
	data.WriteString(string(q.Type))
	data.WriteString("|")
	fmt.Fprintf(&data, "%d", q.Limit)
	if q.MinScore != nil {
		fmt.Fprintf(&data, "|%.4f", *q.MinScore)
	}
	return sha256.Sum256([]byte(data.String()))
}
