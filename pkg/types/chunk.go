package types

import (
	"time"

	"github.com/google/uuid"
)

// Chunk represents a slice of documentation sized for embedding and search.
// IDs are UUID strings so chunks keep their identity across full rebuilds
// of the database.
type Chunk struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	SourceFile     string    `json:"source_file"`
	SectionHeading string    `json:"section_heading"`
	Position       int       `json:"position"`
	TokenCount     int       `json:"token_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewChunk creates a chunk with a fresh UUID and creation timestamp.
func NewChunk(content, sourceFile, heading string, position, tokenCount int) *Chunk {
	return &Chunk{
		ID:             uuid.NewString(),
		Content:        content,
		SourceFile:     sourceFile,
		SectionHeading: heading,
		Position:       position,
		TokenCount:     tokenCount,
		CreatedAt:      time.Now().UTC(),
	}
}

// Validate checks the chunk against the storage schema constraints.
func (c *Chunk) Validate() error {
	if _, err := uuid.Parse(c.ID); err != nil {
		return ErrInvalidChunkID
	}

	if c.Content == "" {
		return ErrEmptyContent
	}

	if c.SourceFile == "" {
		return ErrMissingSourceFile
	}

	if c.Position < 0 {
		return ErrInvalidPosition
	}

	if c.TokenCount <= 0 {
		return ErrInvalidTokenCount
	}

	return nil
}
