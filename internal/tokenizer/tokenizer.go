// Package tokenizer wraps a subword tokenizer for exact token accounting.
//
// Chunk budgets are expressed in tokens, not characters, so the chunker and
// the storage layer both depend on counts from the same encoding. The
// cl100k_base encoding is used throughout.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

// TokenCounter provides exact token counts over a fixed encoding.
// It is safe for concurrent use.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter loads the cl100k_base encoding.
func NewTokenCounter() (*TokenCounter, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", encodingName, err)
	}

	return &TokenCounter{encoding: encoding}, nil
}

// Count returns the number of tokens in text. Empty text counts as zero.
func (tc *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// Encode returns the token IDs for text.
func (tc *TokenCounter) Encode(text string) []int {
	return tc.encoding.Encode(text, nil, nil)
}

// Decode reconstructs text from token IDs. Decoding a slice produced by
// Encode round-trips the original text.
func (tc *TokenCounter) Decode(tokens []int) string {
	return tc.encoding.Decode(tokens)
}
