// Package fetcher syncs documentation sources onto the local filesystem.
//
// Two source kinds are supported: websites, crawled breadth-first from a
// base URL within configured path prefixes, and GitHub repositories,
// downloaded file-by-file through raw.githubusercontent.com. Fetched
// pages are cached on disk with ETag / Last-Modified revalidation so an
// unchanged corpus costs one conditional request per page.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/html"

	"github.com/dshills/docfind-mcp/pkg/types"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxPages  = 50
	maxElapsedRetry  = 2 * time.Minute
	githubRawBaseURL = "https://raw.githubusercontent.com"
	fetcherUserAgent = "docfind/1.0 (+https://github.com/dshills/docfind-mcp)"
	maxDocumentBytes = 10 << 20 // refuse pathological pages
)

// Fetcher downloads documentation sources into a cache directory.
type Fetcher struct {
	client     *http.Client
	cacheDir   string
	githubBase string
	log        *slog.Logger
}

// New creates a Fetcher caching under cacheDir.
func New(cacheDir string, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		client:     &http.Client{Timeout: defaultTimeout},
		cacheDir:   cacheDir,
		githubBase: githubRawBaseURL,
		log:        log,
	}
}

// Sync fetches every configured source and returns the local paths of
// all synced documents. Individual page failures are counted, logged,
// and skipped; Sync itself fails only on configuration errors.
func (f *Fetcher) Sync(ctx context.Context, src *Sources) ([]string, types.SyncStats, error) {
	var stats types.SyncStats
	if err := src.Validate(); err != nil {
		return nil, stats, err
	}

	var paths []string
	for _, site := range src.Websites {
		sitePaths := f.crawlSite(ctx, site, &stats)
		paths = append(paths, sitePaths...)
	}
	for _, repo := range src.GitHub {
		repoPaths := f.fetchGitHub(ctx, repo, &stats)
		paths = append(paths, repoPaths...)
	}

	f.log.Info("source sync complete",
		"fetched", stats.Fetched, "cached", stats.Cached, "failed", stats.Failed)
	return paths, stats, nil
}

// crawlSite walks a website breadth-first from its base URL, staying on
// the same host and within the include prefixes.
func (f *Fetcher) crawlSite(ctx context.Context, site WebsiteSource, stats *types.SyncStats) []string {
	maxPages := site.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	base, err := url.Parse(site.BaseURL)
	if err != nil {
		f.log.Error("invalid base url", "source", site.Name, "url", site.BaseURL, "error", err)
		stats.Failed++
		return nil
	}

	var (
		paths   []string
		visited = map[string]bool{}
		queue   = []*url.URL{base}
	)

	for len(queue) > 0 && len(visited) < maxPages {
		if ctx.Err() != nil {
			break
		}
		pageURL := queue[0]
		queue = queue[1:]

		key := pageURL.String()
		if visited[key] {
			continue
		}
		visited[key] = true

		localPath := f.localPathFor(pageURL)
		cached, err := f.fetchURL(ctx, pageURL.String(), localPath)
		if err != nil {
			f.log.Warn("page fetch failed", "url", key, "error", err)
			stats.Failed++
			continue
		}
		if cached {
			stats.Cached++
		} else {
			stats.Fetched++
		}
		paths = append(paths, localPath)

		links, err := extractLinks(localPath, pageURL)
		if err != nil {
			f.log.Warn("link extraction failed", "path", localPath, "error", err)
			continue
		}
		for _, link := range links {
			if link.Host != base.Host || !matchesPrefix(link.Path, site.IncludePrefixes) {
				continue
			}
			if !visited[link.String()] {
				queue = append(queue, link)
			}
		}
	}

	return paths
}

// fetchGitHub downloads the configured files of one repository.
func (f *Fetcher) fetchGitHub(ctx context.Context, repo GitHubSource, stats *types.SyncStats) []string {
	ref := repo.Ref
	if ref == "" {
		ref = "main"
	}

	var paths []string
	for _, file := range repo.Paths {
		rawURL := fmt.Sprintf("%s/%s/%s/%s", f.githubBase, repo.Repo, ref, strings.TrimPrefix(file, "/"))
		localPath := filepath.Join(f.cacheDir, "github", filepath.FromSlash(repo.Repo), filepath.FromSlash(file))

		cached, err := f.fetchURL(ctx, rawURL, localPath)
		if err != nil {
			f.log.Warn("github fetch failed", "url", rawURL, "error", err)
			stats.Failed++
			continue
		}
		if cached {
			stats.Cached++
		} else {
			stats.Fetched++
		}
		paths = append(paths, localPath)
	}
	return paths
}

// fetchURL downloads one URL into dest, revalidating against the cache
// sidecar. Returns true when the server answered 304 and the cached copy
// was reused. Transient failures are retried with exponential backoff;
// client errors are permanent.
func (f *Fetcher) fetchURL(ctx context.Context, rawURL, dest string) (bool, error) {
	meta, err := loadCacheMetadata(dest)
	if err != nil {
		return false, err
	}

	var cached bool
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", fetcherUserAgent)
		applyConditionalHeaders(req, meta)

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusNotModified:
			cached = true
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(fmt.Errorf("server returned %d for %s", resp.StatusCode, rawURL))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("server returned %d for %s", resp.StatusCode, rawURL)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return backoff.Permanent(err)
		}
		if err := os.WriteFile(dest, body, 0o644); err != nil {
			return backoff.Permanent(err)
		}

		return saveCacheMetadata(dest, &CacheMetadata{
			URL:          rawURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			FetchedAt:    time.Now().UTC(),
			Path:         dest,
		})
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxElapsedRetry
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return false, err
	}
	return cached, nil
}

// localPathFor maps a page URL onto the cache directory, mirroring the
// host and path structure. Extension-less pages get .html so the parser
// dispatches them correctly.
func (f *Fetcher) localPathFor(u *url.URL) string {
	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		p = path.Join(p, "index.html")
	}
	if path.Ext(p) == "" {
		p += ".html"
	}
	return filepath.Join(f.cacheDir, u.Host, filepath.FromSlash(p))
}

// extractLinks parses a fetched HTML file and resolves its anchors
// against the page URL. Fragments and query strings are dropped so the
// same page is not crawled twice.
func extractLinks(localPath string, pageURL *url.URL) ([]*url.URL, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	doc, err := html.Parse(file)
	if err != nil {
		return nil, err
	}

	var links []*url.URL
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				ref, err := url.Parse(attr.Val)
				if err != nil {
					continue
				}
				resolved := pageURL.ResolveReference(ref)
				resolved.Fragment = ""
				resolved.RawQuery = ""
				if resolved.Scheme == "http" || resolved.Scheme == "https" {
					links = append(links, resolved)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

// matchesPrefix reports whether p falls under one of the include
// prefixes. An empty prefix list admits the whole host.
func matchesPrefix(p string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}
