package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustParse(t *testing.T, rawURL string) *url.URL {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u
}

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	content := `
websites:
  - name: example docs
    base_url: https://docs.example.com
    include_prefixes: ["/guide/"]
    max_pages: 10
github:
  - repo: example/project
    ref: main
    paths:
      - README.md
      - docs/usage.md
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	src, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, src.Websites, 1)
	assert.Equal(t, "https://docs.example.com", src.Websites[0].BaseURL)
	assert.Equal(t, []string{"/guide/"}, src.Websites[0].IncludePrefixes)
	require.Len(t, src.GitHub, 1)
	assert.Equal(t, []string{"README.md", "docs/usage.md"}, src.GitHub[0].Paths)
}

func TestSourcesValidation(t *testing.T) {
	tests := []struct {
		name string
		src  Sources
	}{
		{"empty", Sources{}},
		{"missing base url", Sources{Websites: []WebsiteSource{{Name: "x"}}}},
		{"non-http base url", Sources{Websites: []WebsiteSource{{BaseURL: "ftp://x"}}}},
		{"bad repo", Sources{GitHub: []GitHubSource{{Repo: "no-owner", Paths: []string{"a.md"}}}}},
		{"no paths", Sources{GitHub: []GitHubSource{{Repo: "a/b"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.src.Validate())
		})
	}
}

func TestCrawlSiteFollowsIncludedLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="/guide/install">install</a>
			<a href="/guide/config">config</a>
			<a href="/blog/news">excluded</a>
			<a href="https://elsewhere.example.com/page">off host</a>
		</body></html>`)
	})
	mux.HandleFunc("/guide/install", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Install</h1></body></html>`)
	})
	mux.HandleFunc("/guide/config", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Config</h1></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(t.TempDir(), discardLogger())
	paths, stats, err := f.Sync(context.Background(), &Sources{
		Websites: []WebsiteSource{{
			Name:            "test",
			BaseURL:         srv.URL + "/",
			IncludePrefixes: []string{"/guide/"},
			MaxPages:        10,
		}},
	})
	require.NoError(t, err)

	// Base page plus the two /guide/ links; /blog/ and off-host skipped.
	assert.Len(t, paths, 3)
	assert.Equal(t, 3, stats.Fetched)
	assert.Zero(t, stats.Failed)

	for _, p := range paths {
		assert.FileExists(t, p)
	}
}

func TestCrawlSiteRespectsMaxPages(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		// Every page links to two more, an unbounded tree.
		fmt.Fprintf(w, `<html><body>
			<a href="%s/a">a</a>
			<a href="%s/b">b</a>
		</body></html>`, r.URL.Path, r.URL.Path)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(t.TempDir(), discardLogger())
	paths, _, err := f.Sync(context.Background(), &Sources{
		Websites: []WebsiteSource{{BaseURL: srv.URL + "/", MaxPages: 5}},
	})
	require.NoError(t, err)
	assert.Len(t, paths, 5)
	assert.Equal(t, int32(5), hits.Load())
}

func TestFetchURLRevalidates(t *testing.T) {
	const etag = `"v1"`
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		fmt.Fprint(w, "# Hello")
	}))
	defer srv.Close()

	f := New(t.TempDir(), discardLogger())
	dest := filepath.Join(f.cacheDir, "page.md")

	cached, err := f.fetchURL(context.Background(), srv.URL, dest)
	require.NoError(t, err)
	assert.False(t, cached)

	body, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "# Hello", string(body))

	// Second fetch revalidates and reuses the cached copy.
	cached, err = f.fetchURL(context.Background(), srv.URL, dest)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, int32(2), requests.Load())
}

func TestFetchURLClientErrorIsPermanent(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(t.TempDir(), discardLogger())
	_, err := f.fetchURL(context.Background(), srv.URL, filepath.Join(f.cacheDir, "gone.md"))
	require.Error(t, err)
	assert.Equal(t, int32(1), requests.Load(), "4xx must not be retried")
}

func TestFetchGitHub(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/example/project/main/README.md":
			fmt.Fprint(w, "# Project")
		case "/example/project/main/docs/usage.md":
			fmt.Fprint(w, "# Usage")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := New(t.TempDir(), discardLogger())
	f.githubBase = srv.URL

	paths, stats, err := f.Sync(context.Background(), &Sources{
		GitHub: []GitHubSource{{
			Repo:  "example/project",
			Paths: []string{"README.md", "docs/usage.md", "missing.md"},
		}},
	})
	require.NoError(t, err)
	assert.Len(t, paths, 2)
	assert.Equal(t, 2, stats.Fetched)
	assert.Equal(t, 1, stats.Failed)

	body, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "# Usage", string(body))
}

func TestLocalPathFor(t *testing.T) {
	f := New("/cache", discardLogger())

	tests := []struct {
		rawURL string
		want   string
	}{
		{"https://docs.example.com/guide/install", filepath.Join("/cache", "docs.example.com", "guide", "install.html")},
		{"https://docs.example.com/guide/", filepath.Join("/cache", "docs.example.com", "guide", "index.html")},
		{"https://docs.example.com", filepath.Join("/cache", "docs.example.com", "index.html")},
		{"https://docs.example.com/readme.md", filepath.Join("/cache", "docs.example.com", "readme.md")},
	}
	for _, tt := range tests {
		u := mustParse(t, tt.rawURL)
		assert.Equal(t, tt.want, f.localPathFor(u), tt.rawURL)
	}
}
