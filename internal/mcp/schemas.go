package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// queryDocsTool returns the tool definition for query_docs
func queryDocsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query_docs",
		Description: "Search the indexed documentation with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-50)",
					"default":     5,
					"minimum":     1,
					"maximum":     50,
				},
				"query_type": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: semantic (vector), keyword (BM25), or hybrid (both, rank-fused)",
					"enum":        []string{"semantic", "keyword", "hybrid"},
					"default":     "semantic",
				},
				"min_score": map[string]interface{}{
					"type":        "number",
					"description": "Minimum relevance score threshold (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getChunkTool returns the tool definition for get_chunk
func getChunkTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_chunk",
		Description: "Fetch the full content of a documentation chunk by its ID",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chunk_id": map[string]interface{}{
					"type":        "string",
					"description": "Chunk UUID as returned by query_docs",
				},
			},
			Required: []string{"chunk_id"},
		},
	}
}

// refreshDocsTool returns the tool definition for refresh_docs
func refreshDocsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "refresh_docs",
		Description: "Rebuild the documentation index from its sources and swap it in atomically",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getRefreshStatusTool returns the tool definition for get_refresh_status
func getRefreshStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_refresh_status",
		Description: "Report the outcome of the last documentation refresh and whether one is running",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
