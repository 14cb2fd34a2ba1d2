package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Provider configuration
const (
	ProviderLocal = "local"
	ProviderMock  = "mock"

	// DefaultLocalModel is a 384-dimension sentence embedding model served
	// by the local inference endpoint.
	DefaultLocalModel    = "BAAI/bge-small-en-v1.5"
	DefaultLocalEndpoint = "http://localhost:8090/v1/embeddings"

	// EmbeddingDimension is the dimension every provider must produce;
	// the storage schema is built around it.
	EmbeddingDimension = 384

	// Batch limits
	DefaultBatchSize = 32
	MaxBatchSize     = 100

	// Retry configuration
	maxRetries           = 3
	retryInitialInterval = 100 * time.Millisecond
	retryMaxInterval     = 5 * time.Second
)

// LocalProvider calls a local HTTP inference endpoint serving an
// OpenAI-compatible embeddings API.
type LocalProvider struct {
	endpoint   string
	model      string
	httpClient *http.Client
	cache      *Cache
}

// NewLocalProvider creates an embedder backed by a local inference server.
func NewLocalProvider(endpoint string, cache *Cache) (*LocalProvider, error) {
	if endpoint == "" {
		endpoint = DefaultLocalEndpoint
	}

	return &LocalProvider{
		endpoint: endpoint,
		model:    DefaultLocalModel,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	hash := ComputeHash(text)
	if l.cache != nil {
		if vec, ok := l.cache.Get(hash); ok {
			return vec, nil
		}
	}

	vecs, err := l.GenerateBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return vecs[0], nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	var vecs [][]float32
	operation := func() error {
		out, err := l.callAPI(ctx, texts)
		if err != nil {
			return err
		}
		vecs = out
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitialInterval
	policy.MaxInterval = retryMaxInterval
	if err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	for i, vec := range vecs {
		if len(vec) != EmbeddingDimension {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), EmbeddingDimension)
		}
		if l.cache != nil {
			l.cache.Set(ComputeHash(texts[i]), vec)
		}
	}

	return vecs, nil
}

func (l *LocalProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": l.model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
		// Client errors will not succeed on retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data))
	}

	vecs := make([][]float32, len(apiResp.Data))
	for i, data := range apiResp.Data {
		vecs[i] = data.Embedding
	}
	return vecs, nil
}

func (l *LocalProvider) Dimension() int {
	return EmbeddingDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	l.httpClient.CloseIdleConnections()
	return nil
}

// MockProvider produces deterministic unit vectors derived from the text
// hash. Used by tests and offline builds; no network access.
type MockProvider struct {
	cache *Cache
}

// NewMockProvider creates a deterministic offline embedder.
func NewMockProvider(cache *Cache) (*MockProvider, error) {
	return &MockProvider{cache: cache}, nil
}

func (m *MockProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	hash := ComputeHash(text)
	if m.cache != nil {
		if vec, ok := m.cache.Get(hash); ok {
			return vec, nil
		}
	}

	// Stretch the 32-byte digest across the full dimension so distinct
	// texts land far apart in the space.
	digest := sha256.Sum256([]byte(text))
	vec := make([]float32, EmbeddingDimension)
	for i := range vec {
		b := digest[i%len(digest)]
		vec[i] = float32(b)/127.5 - 1.0
	}
	vec = NormalizeVector(vec)

	if m.cache != nil {
		m.cache.Set(hash, vec)
	}
	return vec, nil
}

func (m *MockProvider) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (m *MockProvider) Dimension() int {
	return EmbeddingDimension
}

func (m *MockProvider) Provider() string {
	return ProviderMock
}

func (m *MockProvider) Model() string {
	return "mock-embeddings"
}

func (m *MockProvider) Close() error {
	return nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}
