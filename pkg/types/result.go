package types

// MatchType records which retrieval path produced a result. A result found
// by both legs of a hybrid search is upgraded to MatchHybrid.
type MatchType string

const (
	MatchSemantic MatchType = "semantic"
	MatchKeyword  MatchType = "keyword"
	MatchHybrid   MatchType = "hybrid"
)

// SearchResult pairs a chunk with its relevance score. Rank is 1-indexed
// over the final returned ordering and is assigned after fusion and
// filtering.
type SearchResult struct {
	Chunk     *Chunk    `json:"chunk"`
	Score     float64   `json:"score"`
	Rank      int       `json:"rank"`
	MatchType MatchType `json:"match_type"`
}

// Validate checks score bounds and the embedded chunk.
func (sr *SearchResult) Validate() error {
	if sr.Chunk == nil {
		return ErrChunkNotFound
	}
	if sr.Score < 0 || sr.Score > 1 {
		return ErrInvalidMinScore
	}
	return sr.Chunk.Validate()
}

// QueryResponse is the full answer to a search request.
type QueryResponse struct {
	Results     []SearchResult `json:"results"`
	TotalCount  int            `json:"total_count"`
	QueryText   string         `json:"query_text"`
	QueryType   QueryType      `json:"query_type"`
	ExecutionMs int64          `json:"execution_ms"`
}
