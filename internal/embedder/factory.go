package embedder

import (
	"fmt"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	Endpoint  string
	CacheSize int
}

// New creates an embedder from explicit configuration. An empty provider
// selects the local inference endpoint.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case "", ProviderLocal:
		return NewLocalProvider(cfg.Endpoint, cache)
	case ProviderMock:
		return NewMockProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}
