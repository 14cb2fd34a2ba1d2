package types

import "time"

// RefreshResult records the outcome of a single rebuild-and-swap cycle.
type RefreshResult struct {
	Success     bool          `json:"success"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
	ChunkCount  int           `json:"chunk_count"`
	Error       string        `json:"error,omitempty"`
}

// SyncStats summarizes one source-sync pass.
type SyncStats struct {
	Fetched int `json:"fetched"`
	Cached  int `json:"cached"`
	Failed  int `json:"failed"`
}

// BuildStats summarizes a full pipeline run.
type BuildStats struct {
	Sync            SyncStats     `json:"sync"`
	DocumentsParsed int           `json:"documents_parsed"`
	DocumentsFailed int           `json:"documents_failed"`
	ChunksCreated   int           `json:"chunks_created"`
	Duration        time.Duration `json:"duration"`
}

// Metadata is the singleton row describing the indexed corpus.
type Metadata struct {
	SourcesSummary string    `json:"sources_summary"`
	LocalPath      string    `json:"local_path"`
	LastSync       time.Time `json:"last_sync"`
	TotalFiles     int       `json:"total_files"`
	TotalChunks    int       `json:"total_chunks"`
}
