package crawler

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// NormalizeURL standardizes a URL to avoid duplicates.
// It lowercases the scheme and host, removes default ports, and sorts query parameters.
// It also removes fragments and gives an empty path the root path.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	return normalizeParsed(u).String(), nil
}

func normalizeParsed(u *url.URL) *url.URL {
	out := *u

	// Lowercase scheme and host
	out.Scheme = strings.ToLower(out.Scheme)
	out.Host = strings.ToLower(out.Host)

	// Remove default ports
	if out.Scheme == "http" && strings.HasSuffix(out.Host, ":80") {
		out.Host = strings.TrimSuffix(out.Host, ":80")
	}
	if out.Scheme == "https" && strings.HasSuffix(out.Host, ":443") {
		out.Host = strings.TrimSuffix(out.Host, ":443")
	}

	if out.Path == "" && out.Opaque == "" {
		out.Path = "/"
	}

	// Remove fragment
	out.Fragment = ""
	out.RawFragment = ""

	// Sort query parameters
	out.RawQuery = sortQuery(out.RawQuery)
	out.ForceQuery = false
	return &out
}

// sortQuery orders the pairs of a raw query by key without decoding them, so
// valueless keys and pairs containing ';' survive unchanged. Repeated keys
// keep their relative order.
func sortQuery(raw string) string {
	if raw == "" {
		return ""
	}
	pairs := strings.FieldsFunc(raw, func(r rune) bool { return r == '&' })
	slices.SortStableFunc(pairs, func(a, b string) int {
		return strings.Compare(queryKey(a), queryKey(b))
	})
	return strings.Join(pairs, "&")
}

func queryKey(pair string) string {
	key, _, _ := strings.Cut(pair, "=")
	return key
}

func canonicalizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + strings.TrimPrefix(raw, "//")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("url %q has no host", raw)
	}
	return normalizeParsed(parsed), nil
}

func sameHost(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Hostname(), b.Hostname())
}
