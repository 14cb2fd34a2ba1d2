package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbeddingServer(t *testing.T, fail *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail != nil && fail.Load() > 0 {
			fail.Add(-1)
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type datum struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Data  []datum `json:"data"`
			Model string  `json:"model"`
		}{Model: req.Model}

		for i := range req.Input {
			vec := make([]float32, EmbeddingDimension)
			vec[0] = float32(i + 1)
			resp.Data = append(resp.Data, datum{Embedding: vec, Index: i})
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestLocalProviderBatch(t *testing.T) {
	srv := newEmbeddingServer(t, nil)
	defer srv.Close()

	p, err := NewLocalProvider(srv.URL, NewCache(16))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	vecs, err := p.GenerateBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], EmbeddingDimension)
	assert.InDelta(t, 1.0, vecs[0][0], 1e-6)
	assert.InDelta(t, 2.0, vecs[1][0], 1e-6)
}

func TestLocalProviderRetriesTransientFailure(t *testing.T) {
	var fail atomic.Int32
	fail.Store(2) // first two calls fail, third succeeds

	srv := newEmbeddingServer(t, &fail)
	defer srv.Close()

	p, err := NewLocalProvider(srv.URL, nil)
	require.NoError(t, err)

	vec, err := p.GenerateEmbedding(context.Background(), "retry me")
	require.NoError(t, err)
	assert.Len(t, vec, EmbeddingDimension)
}

func TestLocalProviderCacheHit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		vec := make([]float32, EmbeddingDimension)
		resp := map[string]interface{}{
			"data":  []map[string]interface{}{{"embedding": vec, "index": 0}},
			"model": DefaultLocalModel,
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	p, err := NewLocalProvider(srv.URL, NewCache(16))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = p.GenerateEmbedding(ctx, "cached text")
	require.NoError(t, err)
	_, err = p.GenerateEmbedding(ctx, "cached text")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
}

func TestLocalProviderBatchTooLarge(t *testing.T) {
	p, err := NewLocalProvider("http://unused", nil)
	require.NoError(t, err)

	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "x"
	}
	_, err = p.GenerateBatch(context.Background(), texts)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestLocalProviderDimensionCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"data":  []map[string]interface{}{{"embedding": []float32{1, 2, 3}, "index": 0}},
			"model": DefaultLocalModel,
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	p, err := NewLocalProvider(srv.URL, nil)
	require.NoError(t, err)

	_, err = p.GenerateEmbedding(context.Background(), "wrong dim")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
