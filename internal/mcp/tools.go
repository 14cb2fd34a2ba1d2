package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docfind-mcp/internal/storage"
	"github.com/dshills/docfind-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams     = -32602 // Invalid method parameters
	ErrorCodeInternalError     = -32603 // Search or storage failure
	ErrorCodeNotInitialized    = -32001 // Documentation database not built yet
	ErrorCodeChunkNotFound     = -32002 // No chunk with the given ID
	ErrorCodeRefreshInProgress = -32003 // A refresh is already running
)

// handleQueryDocs handles the query_docs tool invocation
func (s *Server) handleQueryDocs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	queryText, ok := args["query"].(string)
	if !ok || queryText == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	query := &types.Query{
		Text:  queryText,
		Limit: getIntDefault(args, "limit", types.DefaultQueryLimit),
		Type:  types.QueryType(getStringDefault(args, "query_type", string(types.QuerySemantic))),
	}
	if raw, ok := args["min_score"].(float64); ok {
		query.MinScore = &raw
	}

	if err := query.Validate(); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{
			"query_type": string(query.Type),
			"limit":      query.Limit,
		})
	}

	// An empty or schema-less database answers "not initialized" rather
	// than a bare SQL error.
	healthy := false
	err := s.stores.WithStore(ctx, func(store storage.Store) error {
		healthy = store.HealthCheck(ctx)
		return nil
	})
	if err != nil || !healthy {
		return nil, newMCPError(ErrorCodeNotInitialized, "documentation database not initialized; run a refresh first", nil)
	}

	response, err := s.search.Query(ctx, query)
	if err != nil {
		if errors.Is(err, types.ErrDatabaseNotInitialized) {
			return nil, newMCPError(ErrorCodeNotInitialized, "documentation database not initialized; run a refresh first", nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(marshalJSON(response)), nil
}

// handleGetChunk handles the get_chunk tool invocation
func (s *Server) handleGetChunk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	chunkID, ok := args["chunk_id"].(string)
	if !ok || chunkID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "chunk_id parameter is required", map[string]interface{}{
			"param":  "chunk_id",
			"reason": "missing or empty",
		})
	}
	if _, err := uuid.Parse(chunkID); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "chunk_id must be a UUID", map[string]interface{}{
			"param": "chunk_id",
			"value": chunkID,
		})
	}

	var chunk *types.Chunk
	err := s.stores.WithStore(ctx, func(store storage.Store) error {
		var gerr error
		chunk, gerr = store.GetChunk(ctx, chunkID)
		return gerr
	})
	switch {
	case errors.Is(err, types.ErrChunkNotFound):
		return nil, newMCPError(ErrorCodeChunkNotFound, "chunk not found", map[string]interface{}{
			"chunk_id": chunkID,
		})
	case errors.Is(err, types.ErrDatabaseNotInitialized):
		return nil, newMCPError(ErrorCodeNotInitialized, "documentation database not initialized; run a refresh first", nil)
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "failed to fetch chunk", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(marshalJSON(chunk)), nil
}

// handleRefreshDocs handles the refresh_docs tool invocation
func (s *Server) handleRefreshDocs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.orch.RefreshOnce(ctx)
	if errors.Is(err, types.ErrRefreshInProgress) {
		return nil, newMCPError(ErrorCodeRefreshInProgress, "a refresh is already running", nil)
	}
	if err != nil {
		// The failed result still carries timing and the error message.
		return nil, newMCPError(ErrorCodeInternalError, "refresh failed", map[string]interface{}{
			"error":  err.Error(),
			"result": result,
		})
	}

	return mcp.NewToolResultText(marshalJSON(result)), nil
}

// handleGetRefreshStatus handles the get_refresh_status tool invocation
func (s *Server) handleGetRefreshStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := map[string]interface{}{
		"in_progress": s.orch.InProgress(),
		"last_result": s.orch.LastResult(),
	}
	return mcp.NewToolResultText(marshalJSON(status)), nil
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

// marshalJSON formats a value as indented JSON for tool output
func marshalJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}
