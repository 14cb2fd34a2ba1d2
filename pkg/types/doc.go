// Package types provides shared type definitions for the docfind MCP server.
//
// This package defines domain types used across multiple components,
// including documentation chunks, parsed documents, queries, search
// results, and refresh records.
//
// # Core Types
//
// Chunk represents a slice of documentation sized for embedding and search:
//
//	chunk := types.NewChunk(sectionText, "docs/install.md", "Installation", 0, 412)
//
// Query is a validated search request:
//
//	q := &types.Query{Text: "how do I configure TLS", Type: types.QueryHybrid}
//	if err := q.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Validation
//
// All domain types implement validation methods to ensure data integrity
// before they reach storage. Relevance scores are normalized to [0, 1],
// with higher values indicating better matches.
package types
