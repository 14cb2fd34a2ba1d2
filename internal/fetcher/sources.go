package fetcher

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sources is the parsed sources.yaml: the documentation corpus to sync.
type Sources struct {
	Websites []WebsiteSource `yaml:"websites"`
	GitHub   []GitHubSource  `yaml:"github"`
}

// WebsiteSource describes a documentation site to crawl. The crawl starts
// at BaseURL and follows same-host links whose path matches one of the
// include prefixes, up to MaxPages pages.
type WebsiteSource struct {
	Name            string   `yaml:"name"`
	BaseURL         string   `yaml:"base_url"`
	IncludePrefixes []string `yaml:"include_prefixes"`
	MaxPages        int      `yaml:"max_pages"`
}

// GitHubSource describes markdown files downloaded from a repository via
// raw.githubusercontent.com.
type GitHubSource struct {
	Repo  string   `yaml:"repo"` // owner/name
	Ref   string   `yaml:"ref"`  // branch, tag, or commit; defaults to main
	Paths []string `yaml:"paths"`
}

// LoadSources reads and validates a sources.yaml file.
func LoadSources(path string) (*Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var src Sources
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	return &src, nil
}

// Validate checks the source list for the mistakes that would otherwise
// surface mid-sync.
func (s *Sources) Validate() error {
	if len(s.Websites) == 0 && len(s.GitHub) == 0 {
		return fmt.Errorf("sources file lists no websites and no github sources")
	}
	for i, w := range s.Websites {
		if w.BaseURL == "" {
			return fmt.Errorf("website source %d: base_url is required", i)
		}
		if !strings.HasPrefix(w.BaseURL, "http://") && !strings.HasPrefix(w.BaseURL, "https://") {
			return fmt.Errorf("website source %d: base_url must be http(s): %s", i, w.BaseURL)
		}
	}
	for i, g := range s.GitHub {
		if g.Repo == "" || !strings.Contains(g.Repo, "/") {
			return fmt.Errorf("github source %d: repo must be owner/name", i)
		}
		if len(g.Paths) == 0 {
			return fmt.Errorf("github source %d: at least one path is required", i)
		}
	}
	return nil
}
