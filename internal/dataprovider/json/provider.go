// Package jsonprovider stores crawl records as JSON documents on the local
// filesystem, one file per page or sitemap.
package jsonprovider

import (
	"context"
	"crypto/sha1" //nolint:gosec // file naming only
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/JakeFAU/polite-crawler/internal/crawler"
	"github.com/JakeFAU/polite-crawler/internal/dataprovider/memory"
)

const (
	pagesDir    = "pages"
	sitemapsDir = "sitemaps"
)

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Config captures the parameters for the JSON provider.
type Config struct {
	// Dir is the root directory; records land in Dir/pages and Dir/sitemaps.
	Dir    string
	RunID  string
	Hasher crawler.Hasher
	Clock  crawler.Clock
	Logger *zap.Logger
}

// Provider writes records to disk and answers lookups from an in-memory
// index that Init fills from earlier runs.
type Provider struct {
	dir    string
	index  *memory.Provider
	logger *zap.Logger
}

// New creates a JSON provider rooted at cfg.Dir. Nothing touches the disk
// until Init.
func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		dir: cfg.Dir,
		index: memory.New(memory.Config{
			RunID:  cfg.RunID,
			Hasher: cfg.Hasher,
			Clock:  cfg.Clock,
		}),
		logger: logger,
	}, nil
}

// Init prepares the record directories and loads existing page records.
// Unreadable records are skipped and reported once.
func (p *Provider) Init(_ context.Context) error {
	for _, sub := range []string{pagesDir, sitemapsDir} {
		if err := ensureWritableDir(filepath.Join(p.dir, sub)); err != nil {
			return err
		}
	}

	loaded, err := p.loadPages()
	if err != nil {
		var merr *multierror.Error
		if !errors.As(err, &merr) {
			return err
		}
		p.logger.Warn("Skipped unreadable page records",
			zap.String("dir", filepath.Join(p.dir, pagesDir)),
			zap.Int("count", len(merr.Errors)),
			zap.Error(merr),
		)
	}
	p.logger.Info("Data provider ready",
		zap.String("dir", p.dir),
		zap.Int("known_pages", loaded),
	)
	return nil
}

// RetrievePage answers from the in-memory index.
func (p *Provider) RetrievePage(ctx context.Context, rawURL string) (*crawler.PageRecord, error) {
	return p.index.RetrievePage(ctx, rawURL)
}

// AddPage writes the page record to disk and indexes it.
func (p *Provider) AddPage(_ context.Context, page *crawler.Page) error {
	record, err := p.index.BuildPageRecord(page)
	if err != nil {
		return err
	}
	if err := p.write(pagesDir, record.URL, record); err != nil {
		return err
	}
	p.index.PutPage(record)
	return nil
}

// AddSitemap writes the sitemap record to disk and indexes it.
func (p *Provider) AddSitemap(_ context.Context, sitemap *crawler.Sitemap) error {
	record, err := p.index.BuildSitemapRecord(sitemap)
	if err != nil {
		return err
	}
	if err := p.write(sitemapsDir, record.URL, record); err != nil {
		return err
	}
	p.index.PutSitemap(record)
	return nil
}

func (p *Provider) write(kind, rawURL string, v any) error {
	baseDir := filepath.Join(p.dir, kind)
	fullPath := filepath.Join(baseDir, safeBasename(rawURL)+".json")

	// Clean the path and verify it's within baseDir to prevent path traversal.
	cleanBaseDir := filepath.Clean(baseDir)
	cleanFullPath := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFullPath, cleanBaseDir+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected")
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := os.WriteFile(cleanFullPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (p *Provider) loadPages() (int, error) {
	dir := filepath.Join(p.dir, pagesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list page records: %w", err)
	}

	var result *multierror.Error
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path) //nolint:gosec // path comes from ReadDir of our own directory
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		var record crawler.PageRecord
		if err := json.Unmarshal(data, &record); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		if strings.TrimSpace(record.URL) == "" {
			result = multierror.Append(result, fmt.Errorf("%s: record has no url", entry.Name()))
			continue
		}
		p.index.PutPage(record)
		loaded++
	}
	return loaded, result.ErrorOrNil()
}

func ensureWritableDir(dir string) error {
	// Check if the directory exists and is writable.
	info, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat data directory: %w", err)
		}
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return fmt.Errorf("failed to create data directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return fmt.Errorf("data directory path %s is not a directory", dir)
	}

	testFile := filepath.Join(dir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("data directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return fmt.Errorf("failed to clean up test file: %w", err)
	}
	return nil
}

// safeBasename derives a stable file name from a URL: host, flattened path
// and a short digest of the full URL.
func safeBasename(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return hashURL(raw)
	}
	host := invalidFilenameChars.ReplaceAllString(u.Hostname(), "_")
	if host == "" {
		host = "unknown"
	}
	p := strings.Trim(u.EscapedPath(), "/")
	if p == "" {
		p = "root"
	}
	p = invalidFilenameChars.ReplaceAllString(p, "_")
	if len(p) > 100 {
		p = p[:100]
	}
	return fmt.Sprintf("%s_%s_%s", host, p, hashURL(raw)[:16])
}

func hashURL(raw string) string {
	sum := sha1.Sum([]byte(raw)) //nolint:gosec // file naming only
	return hex.EncodeToString(sum[:])
}
