package fetcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

// metadataSuffix is appended to a cached file's path to hold its
// revalidation metadata.
const metadataSuffix = ".meta.json"

// CacheMetadata records the validators from the last successful fetch of
// a URL. It lives beside the cached file so the cache survives restarts.
type CacheMetadata struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
	Path         string    `json:"path"`
}

// loadCacheMetadata reads the metadata sidecar for a cached file.
// A missing sidecar or a missing cached file both mean "not cached".
func loadCacheMetadata(cachedPath string) (*CacheMetadata, error) {
	if _, err := os.Stat(cachedPath); err != nil {
		return nil, nil
	}

	data, err := os.ReadFile(cachedPath + metadataSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache metadata: %w", err)
	}

	var meta CacheMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		// A corrupt sidecar is treated as a cache miss.
		return nil, nil
	}
	return &meta, nil
}

// saveCacheMetadata writes the metadata sidecar for a cached file.
func saveCacheMetadata(cachedPath string, meta *CacheMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache metadata: %w", err)
	}
	if err := os.WriteFile(cachedPath+metadataSuffix, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache metadata: %w", err)
	}
	return nil
}

// applyConditionalHeaders adds If-None-Match / If-Modified-Since from the
// stored validators so an unchanged page answers 304.
func applyConditionalHeaders(req *http.Request, meta *CacheMetadata) {
	if meta == nil {
		return
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}
}
