package types

// QueryType selects the retrieval strategy for a search.
type QueryType string

const (
	QuerySemantic QueryType = "semantic"
	QueryKeyword  QueryType = "keyword"
	QueryHybrid   QueryType = "hybrid"
)

// Query limits enforced for every search request.
const (
	MinQueryLimit     = 1
	MaxQueryLimit     = 50
	DefaultQueryLimit = 5
)

// ParseQueryType validates a query type string.
func ParseQueryType(s string) (QueryType, error) {
	switch QueryType(s) {
	case QuerySemantic, QueryKeyword, QueryHybrid:
		return QueryType(s), nil
	default:
		return "", ErrInvalidQueryType
	}
}

// Query is a validated search request.
type Query struct {
	Text     string    `json:"text"`
	Limit    int       `json:"limit"`
	Type     QueryType `json:"query_type"`
	MinScore *float64  `json:"min_score,omitempty"`
}

// Validate checks the query and applies defaults for zero-valued fields.
func (q *Query) Validate() error {
	if q.Text == "" {
		return ErrEmptyQuery
	}

	if q.Limit == 0 {
		q.Limit = DefaultQueryLimit
	}
	if q.Limit < MinQueryLimit || q.Limit > MaxQueryLimit {
		return ErrInvalidLimit
	}

	if q.Type == "" {
		q.Type = QuerySemantic
	}
	if _, err := ParseQueryType(string(q.Type)); err != nil {
		return err
	}

	if q.MinScore != nil && (*q.MinScore < 0.0 || *q.MinScore > 1.0) {
		return ErrInvalidMinScore
	}

	return nil
}
