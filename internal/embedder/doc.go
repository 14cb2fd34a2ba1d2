// Package embedder generates vector embeddings for documentation chunks.
//
// Embeddings are produced by a local inference endpoint serving a
// 384-dimension sentence embedding model (BAAI/bge-small-en-v1.5 class),
// with batching, LRU caching, and retry handling for production use.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{CacheSize: 10000})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	vec, err := emb.GenerateEmbedding(ctx, chunk.Content)
//	fmt.Printf("Vector dimension: %d\n", len(vec))
//
// # Batch Processing
//
// For efficiency during index builds, embed chunks in batches:
//
//	texts := make([]string, len(chunks))
//	for i, c := range chunks {
//	    texts[i] = c.Content
//	}
//	vecs, err := emb.GenerateBatch(ctx, texts)
//
// Batching reduces round trips to the inference endpoint significantly.
//
// # Providers
//
// Two providers are available:
//
//   - local: HTTP calls against an OpenAI-compatible embeddings endpoint
//     (default http://localhost:8090/v1/embeddings)
//   - mock: deterministic hash-derived unit vectors for tests and offline
//     builds; no network access
//
// Every provider produces EmbeddingDimension (384) wide vectors; the
// storage schema depends on it, so a provider returning any other width is
// rejected with ErrDimensionMismatch.
//
// # Caching
//
// An in-memory LRU cache keyed by the SHA-256 of the input text sits in
// front of any provider:
//
//	cache := embedder.NewCache(10000)
//
// # Error Handling
//
// Transient endpoint failures are retried with exponential backoff; after
// the retry budget is exhausted ErrProviderFailed is returned:
//
//	vecs, err := emb.GenerateBatch(ctx, texts)
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // endpoint unavailable, retry the build later
//	}
package embedder
