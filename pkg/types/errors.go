package types

import "errors"

// Domain errors shared across components.
var (
	// Chunk validation errors
	ErrInvalidChunkID    = errors.New("chunk ID must be a valid UUID")
	ErrEmptyContent      = errors.New("content cannot be empty")
	ErrMissingSourceFile = errors.New("source file is required")
	ErrInvalidPosition   = errors.New("chunk position must be >= 0")
	ErrInvalidTokenCount = errors.New("token count must be > 0")

	// Query validation errors
	ErrEmptyQuery       = errors.New("query text cannot be empty")
	ErrInvalidLimit     = errors.New("limit must be between 1 and 50")
	ErrInvalidQueryType = errors.New("query type must be semantic, keyword, or hybrid")
	ErrInvalidMinScore  = errors.New("min_score must be between 0.0 and 1.0")

	// Storage errors
	ErrChunkNotFound          = errors.New("chunk not found")
	ErrDimensionMismatch      = errors.New("embedding dimension mismatch")
	ErrDatabaseNotInitialized = errors.New("documentation database is not initialized")

	// Refresh errors
	ErrRefreshInProgress = errors.New("refresh already in progress")
)
