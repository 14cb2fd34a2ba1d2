// Package config loads server configuration from a YAML file and
// DOCFIND_-prefixed environment variables, with defaults for every knob.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Chunking ChunkingConfig `mapstructure:"chunking"`
	Embed    EmbedConfig    `mapstructure:"embedding"`
	Search   SearchConfig   `mapstructure:"search"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path       string `mapstructure:"path"`
	TempPath   string `mapstructure:"temp_path"`
	BackupKeep int    `mapstructure:"backup_keep"`
}

type FetchConfig struct {
	CacheDir    string `mapstructure:"cache_dir"`
	SourcesFile string `mapstructure:"sources_file"`
}

type ChunkingConfig struct {
	MaxTokens     int `mapstructure:"max_tokens"`
	MinTokens     int `mapstructure:"min_tokens"`
	OverlapTokens int `mapstructure:"overlap_tokens"`
}

type EmbedConfig struct {
	Provider  string `mapstructure:"provider"`
	Endpoint  string `mapstructure:"endpoint"`
	Dimension int    `mapstructure:"dimension"`
	BatchSize int    `mapstructure:"batch_size"`
	CacheSize int    `mapstructure:"cache_size"`
}

type SearchConfig struct {
	DefaultLimit int     `mapstructure:"default_limit"`
	RRFConstant  float64 `mapstructure:"rrf_k"`
}

type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Cron     string        `mapstructure:"cron"`
}

// Load reads configuration from path (optional; "" searches the working
// directory for config.yaml) layered under DOCFIND_ environment
// variables and built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("DOCFIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.port", 8080)

	v.SetDefault("database.path", "./data/docs.db")
	v.SetDefault("database.temp_path", "./data/docs.db.new")
	v.SetDefault("database.backup_keep", 1)

	v.SetDefault("fetch.cache_dir", "./data/cache")
	v.SetDefault("fetch.sources_file", "./sources.yaml")

	v.SetDefault("chunking.max_tokens", 512)
	v.SetDefault("chunking.min_tokens", 100)
	v.SetDefault("chunking.overlap_tokens", 100)

	v.SetDefault("embedding.provider", "local")
	v.SetDefault("embedding.endpoint", "")
	v.SetDefault("embedding.dimension", 384)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.cache_size", 10000)

	v.SetDefault("search.default_limit", 5)
	v.SetDefault("search.rrf_k", 60.0)

	v.SetDefault("refresh.interval", 24*time.Hour)
	v.SetDefault("refresh.cron", "")
}

// Validate rejects values the downstream packages would choke on.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.TempPath == "" {
		return fmt.Errorf("database.temp_path is required")
	}
	if c.Database.Path == c.Database.TempPath {
		return fmt.Errorf("database.temp_path must differ from database.path")
	}
	if c.Embed.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embed.Dimension)
	}
	if c.Chunking.MaxTokens < 256 || c.Chunking.MaxTokens > 1024 {
		return fmt.Errorf("chunking.max_tokens must be between 256 and 1024, got %d", c.Chunking.MaxTokens)
	}
	if c.Refresh.Interval <= 0 && c.Refresh.Cron == "" {
		return fmt.Errorf("refresh.interval must be positive when no cron is set")
	}
	return nil
}
