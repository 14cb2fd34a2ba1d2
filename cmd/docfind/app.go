package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/docfind-mcp/internal/chunker"
	"github.com/dshills/docfind-mcp/internal/config"
	"github.com/dshills/docfind-mcp/internal/dbmanager"
	"github.com/dshills/docfind-mcp/internal/embedder"
	"github.com/dshills/docfind-mcp/internal/fetcher"
	"github.com/dshills/docfind-mcp/internal/logger"
	"github.com/dshills/docfind-mcp/internal/pipeline"
	"github.com/dshills/docfind-mcp/internal/refresh"
	"github.com/dshills/docfind-mcp/internal/searcher"
	"github.com/dshills/docfind-mcp/internal/tokenizer"
)

const timeRounding = time.Millisecond

// app holds the wired service graph shared by the CLI commands.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	embed   embedder.Embedder
	stores  *refresh.StoreManager
	search  *searcher.SearchService
	manager *dbmanager.Manager
	orch    *refresh.Orchestrator
}

// newApp loads configuration and wires every component.
func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	counter, err := tokenizer.NewTokenCounter()
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	ck, err := chunker.New(counter, chunker.Config{
		MaxTokens:     cfg.Chunking.MaxTokens,
		MinTokens:     cfg.Chunking.MinTokens,
		OverlapTokens: cfg.Chunking.OverlapTokens,
	})
	if err != nil {
		return nil, err
	}

	embed, err := embedder.New(embedder.Config{
		Provider:  cfg.Embed.Provider,
		Endpoint:  cfg.Embed.Endpoint,
		CacheSize: cfg.Embed.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	sources, err := fetcher.LoadSources(cfg.Fetch.SourcesFile)
	if err != nil {
		return nil, err
	}
	fetch := fetcher.New(cfg.Fetch.CacheDir, log)

	pipe := pipeline.New(fetch, sources, ck, embed, pipeline.Config{
		BatchSize: cfg.Embed.BatchSize,
	}, log)

	manager := dbmanager.New(cfg.Database.Path, cfg.Database.BackupKeep, log)
	stores := refresh.NewStoreManager(cfg.Database.Path, cfg.Embed.Dimension)
	search := searcher.NewSearchService(stores.WithStore, embed,
		searcher.WithRRFConstant(cfg.Search.RRFConstant))

	orch := refresh.New(pipe, manager, stores, search, refresh.Config{
		TempPath:  cfg.Database.TempPath,
		Dimension: cfg.Embed.Dimension,
		Interval:  cfg.Refresh.Interval,
		Cron:      cfg.Refresh.Cron,
	}, log)

	return &app{
		cfg:     cfg,
		log:     log,
		embed:   embed,
		stores:  stores,
		search:  search,
		manager: manager,
		orch:    orch,
	}, nil
}

func (a *app) close() {
	_ = a.stores.Close()
	_ = a.embed.Close()
}
