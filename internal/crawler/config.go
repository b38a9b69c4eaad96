package crawler

import (
	"fmt"
	"strings"
)

// Default traversal limits.
const (
	DefaultMaxPageDepth    = 2
	DefaultMaxSitemapDepth = 10
	DefaultUserAgent       = "PoliteCrawler/1.0"
)

// NoExpansion turns a depth limit off. As MaxPageDepth it stops link
// expansion below the entry page; as MaxSitemapDepth it stops the walk at
// the entry sitemap.
const NoExpansion = -1

// Config holds the settings for a crawl session.
// This struct is decoupled from Viper, making the crawler and its configuration
// more modular and easier to test independently.
//
// Zero depth limits take DefaultMaxPageDepth and DefaultMaxSitemapDepth; use
// NoExpansion to disable either.
type Config struct {
	UserAgent        string
	DomainExtensions []string
	MaxPageDepth     int
	MaxSitemapDepth  int
	RespectRobots    bool
	HrefPolicy       HrefPolicy
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.MaxPageDepth < NoExpansion {
		return fmt.Errorf("crawler.max_page_depth must be >= 0")
	}
	if c.MaxSitemapDepth < NoExpansion {
		return fmt.Errorf("crawler.max_sitemap_depth must be >= 0")
	}
	switch c.HrefPolicy {
	case "", HrefPolicyKnown, HrefPolicyUnvisited:
	default:
		return fmt.Errorf("crawler.href_policy %q is not one of %q, %q", c.HrefPolicy, HrefPolicyKnown, HrefPolicyUnvisited)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.HrefPolicy == "" {
		c.HrefPolicy = HrefPolicyKnown
	}
	c.MaxPageDepth = depthOrDefault(c.MaxPageDepth, DefaultMaxPageDepth)
	c.MaxSitemapDepth = depthOrDefault(c.MaxSitemapDepth, DefaultMaxSitemapDepth)
	c.DomainExtensions = NormalizeExtensions(c.DomainExtensions)
	return c
}

func depthOrDefault(depth, def int) int {
	switch {
	case depth == 0:
		return def
	case depth < 0:
		return 0
	default:
		return depth
	}
}

// NormalizeExtensions lowercases and trims an extension allow-list, drops
// leading dots and blanks, and removes duplicates.
func NormalizeExtensions(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, ext := range in {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out
}
