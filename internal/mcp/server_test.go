package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docfind-mcp/internal/dbmanager"
	"github.com/dshills/docfind-mcp/internal/refresh"
	"github.com/dshills/docfind-mcp/internal/searcher"
	"github.com/dshills/docfind-mcp/internal/storage"
	"github.com/dshills/docfind-mcp/pkg/types"
)

const testDimension = 4

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubEmbedder answers fixed vectors so queries are deterministic.
type stubEmbedder struct{}

func (stubEmbedder) GenerateEmbedding(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func (e stubEmbedder) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (stubEmbedder) Dimension() int   { return testDimension }
func (stubEmbedder) Provider() string { return "stub" }
func (stubEmbedder) Model() string    { return "stub" }
func (stubEmbedder) Close() error     { return nil }

// stubBuilder writes one chunk, optionally blocking on a gate first.
type stubBuilder struct {
	gate chan struct{}
}

func (b *stubBuilder) Build(ctx context.Context, store storage.Store) (*types.BuildStats, error) {
	if b.gate != nil {
		<-b.gate
	}
	if err := store.Initialize(ctx); err != nil {
		return nil, err
	}
	chunk := types.NewChunk("refreshed content", "docs/fresh.md", "Fresh", 0, 2)
	if err := store.InsertChunk(ctx, chunk, []float32{0, 1, 0, 0}); err != nil {
		return nil, err
	}
	return &types.BuildStats{DocumentsParsed: 1, ChunksCreated: 1}, nil
}

// newTestServer builds a Server over a temp database. When seed is true
// the database is created with one searchable chunk; otherwise the
// active path starts empty.
func newTestServer(t *testing.T, seed bool, builder refresh.Builder) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	active := filepath.Join(dir, "docs.db")

	var seededID string
	if seed {
		store, err := storage.NewSQLiteStore(active, testDimension)
		require.NoError(t, err)
		require.NoError(t, store.Initialize(context.Background()))
		chunk := types.NewChunk(
			"Install the binary and add it to your PATH.",
			"docs/install.md", "Installation", 0, 9)
		require.NoError(t, store.InsertChunk(context.Background(), chunk, []float32{1, 0, 0, 0}))
		require.NoError(t, store.Close())
		seededID = chunk.ID
	}

	stores := refresh.NewStoreManager(active, testDimension)
	t.Cleanup(func() { _ = stores.Close() })

	search := searcher.NewSearchService(stores.WithStore, stubEmbedder{})
	manager := dbmanager.New(active, 1, discardLogger())

	if builder == nil {
		builder = &stubBuilder{}
	}
	orch := refresh.New(builder, manager, stores, search, refresh.Config{
		TempPath:  filepath.Join(dir, "docs.db.new"),
		Dimension: testDimension,
		Interval:  time.Hour,
	}, discardLogger())

	return NewServer(search, stores, orch, discardLogger()), seededID
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// resultText extracts the text payload of a tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func assertMCPErrorCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
}

func TestQueryDocs(t *testing.T) {
	srv, _ := newTestServer(t, true, nil)

	result, err := srv.handleQueryDocs(context.Background(), callRequest("query_docs", map[string]interface{}{
		"query": "install the binary",
	}))
	require.NoError(t, err)

	var resp types.QueryResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "docs/install.md", resp.Results[0].Chunk.SourceFile)
	assert.Equal(t, types.QuerySemantic, resp.QueryType)
}

func TestQueryDocsKeyword(t *testing.T) {
	srv, _ := newTestServer(t, true, nil)

	result, err := srv.handleQueryDocs(context.Background(), callRequest("query_docs", map[string]interface{}{
		"query":      "PATH binary",
		"query_type": "keyword",
	}))
	require.NoError(t, err)

	var resp types.QueryResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &resp))
	assert.Equal(t, types.QueryKeyword, resp.QueryType)
}

func TestQueryDocsInvalidParams(t *testing.T) {
	srv, _ := newTestServer(t, true, nil)
	ctx := context.Background()

	_, err := srv.handleQueryDocs(ctx, callRequest("query_docs", map[string]interface{}{}))
	assertMCPErrorCode(t, err, ErrorCodeInvalidParams)

	_, err = srv.handleQueryDocs(ctx, callRequest("query_docs", map[string]interface{}{
		"query": "x", "query_type": "fuzzy",
	}))
	assertMCPErrorCode(t, err, ErrorCodeInvalidParams)

	_, err = srv.handleQueryDocs(ctx, callRequest("query_docs", map[string]interface{}{
		"query": "x", "limit": float64(51),
	}))
	assertMCPErrorCode(t, err, ErrorCodeInvalidParams)

	_, err = srv.handleQueryDocs(ctx, callRequest("query_docs", map[string]interface{}{
		"query": "x", "min_score": 1.5,
	}))
	assertMCPErrorCode(t, err, ErrorCodeInvalidParams)
}

func TestQueryDocsUninitializedDatabase(t *testing.T) {
	srv, _ := newTestServer(t, false, nil)

	_, err := srv.handleQueryDocs(context.Background(), callRequest("query_docs", map[string]interface{}{
		"query": "anything",
	}))
	assertMCPErrorCode(t, err, ErrorCodeNotInitialized)
}

func TestGetChunk(t *testing.T) {
	srv, chunkID := newTestServer(t, true, nil)

	result, err := srv.handleGetChunk(context.Background(), callRequest("get_chunk", map[string]interface{}{
		"chunk_id": chunkID,
	}))
	require.NoError(t, err)

	var chunk types.Chunk
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &chunk))
	assert.Equal(t, chunkID, chunk.ID)
	assert.Equal(t, "Installation", chunk.SectionHeading)
}

func TestGetChunkInvalidID(t *testing.T) {
	srv, _ := newTestServer(t, true, nil)

	_, err := srv.handleGetChunk(context.Background(), callRequest("get_chunk", map[string]interface{}{
		"chunk_id": "not-a-uuid",
	}))
	assertMCPErrorCode(t, err, ErrorCodeInvalidParams)
}

func TestGetChunkNotFound(t *testing.T) {
	srv, _ := newTestServer(t, true, nil)

	_, err := srv.handleGetChunk(context.Background(), callRequest("get_chunk", map[string]interface{}{
		"chunk_id": "00000000-0000-4000-8000-000000000000",
	}))
	assertMCPErrorCode(t, err, ErrorCodeChunkNotFound)
}

func TestRefreshDocs(t *testing.T) {
	srv, _ := newTestServer(t, false, nil)

	result, err := srv.handleRefreshDocs(context.Background(), callRequest("refresh_docs", nil))
	require.NoError(t, err)

	var refreshResult types.RefreshResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &refreshResult))
	assert.True(t, refreshResult.Success)
	assert.Equal(t, 1, refreshResult.ChunkCount)

	// The refreshed corpus is immediately queryable.
	queryResult, err := srv.handleQueryDocs(context.Background(), callRequest("query_docs", map[string]interface{}{
		"query":      "refreshed",
		"query_type": "keyword",
	}))
	require.NoError(t, err)
	var resp types.QueryResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, queryResult)), &resp))
	assert.NotEmpty(t, resp.Results)
}

func TestRefreshDocsBusy(t *testing.T) {
	builder := &stubBuilder{gate: make(chan struct{})}
	srv, _ := newTestServer(t, false, builder)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = srv.handleRefreshDocs(context.Background(), callRequest("refresh_docs", nil))
	}()

	require.Eventually(t, srv.orch.InProgress, time.Second, time.Millisecond)

	_, err := srv.handleRefreshDocs(context.Background(), callRequest("refresh_docs", nil))
	assertMCPErrorCode(t, err, ErrorCodeRefreshInProgress)

	close(builder.gate)
	wg.Wait()
}

func TestGetRefreshStatus(t *testing.T) {
	srv, _ := newTestServer(t, false, nil)

	result, err := srv.handleGetRefreshStatus(context.Background(), callRequest("get_refresh_status", nil))
	require.NoError(t, err)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &status))
	assert.Equal(t, false, status["in_progress"])
	assert.Nil(t, status["last_result"])

	_, err = srv.handleRefreshDocs(context.Background(), callRequest("refresh_docs", nil))
	require.NoError(t, err)

	result, err = srv.handleGetRefreshStatus(context.Background(), callRequest("get_refresh_status", nil))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &status))

	last, ok := status["last_result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, last["success"])
}
