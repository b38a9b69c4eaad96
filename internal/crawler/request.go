package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Request is the resolved, normalized form of a URL the crawler is about to
// fetch. It is derived once per resource and never mutated.
type Request struct {
	url       *url.URL
	domain    string
	extension string
}

// NewRequest resolves rawURL into an absolute http(s) Request. A missing
// scheme defaults to http.
func NewRequest(rawURL string) (*Request, error) {
	parsed, err := canonicalizeURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("resolve request: %w", err)
	}
	domain := strings.ToLower(parsed.Hostname())
	return &Request{
		url:       parsed,
		domain:    domain,
		extension: domainExtension(domain),
	}, nil
}

// URL returns the normalized absolute URL.
func (r *Request) URL() string {
	return r.url.String()
}

// DomainURL returns scheme://host[:port] of the request.
func (r *Request) DomainURL() string {
	return (&url.URL{Scheme: r.url.Scheme, Host: r.url.Host}).String()
}

// Domain returns the lowercase host without port.
func (r *Request) Domain() string {
	return r.domain
}

// Path returns the URL path, always at least "/".
func (r *Request) Path() string {
	return r.url.EscapedPath()
}

// RequestURI returns the escaped path plus the raw query, the form robots.txt
// rules are matched against.
func (r *Request) RequestURI() string {
	if r.url.RawQuery == "" {
		return r.Path()
	}
	return r.Path() + "?" + r.url.RawQuery
}

// Extension returns the public suffix of the host ("com", "co.uk").
func (r *Request) Extension() string {
	return r.extension
}

// Resolve resolves ref against the request URL and normalizes the result.
func (r *Request) Resolve(ref string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", ref, err)
	}
	abs := r.url.ResolveReference(parsed)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", fmt.Errorf("href %q: unsupported scheme %q", ref, abs.Scheme)
	}
	if abs.Hostname() == "" {
		return "", fmt.Errorf("href %q has no host", ref)
	}
	return normalizeParsed(abs).String(), nil
}

func (r *Request) parsed() *url.URL {
	return r.url
}

func domainExtension(host string) string {
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return ""
	}
	suffix, _ := publicsuffix.PublicSuffix(host)
	return strings.ToLower(suffix)
}
