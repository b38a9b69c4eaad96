package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// Page is a fetched HTML document together with the robots policy that
// governs it.
type Page struct {
	request   *Request
	robots    *Robots
	fetcher   Fetcher
	userAgent string

	response  FetchResponse
	fetchedAt time.Time
	retrieved bool
	title     string
	internal  []Href
	external  []Href
}

// NewPage builds a Page for rawURL. A non-nil robots is shared with the
// caller; otherwise Init fetches a fresh one.
func NewPage(rawURL string, robots *Robots, fetcher Fetcher, userAgent string) (*Page, error) {
	request, err := NewRequest(rawURL)
	if err != nil {
		return nil, err
	}
	return &Page{
		request:   request,
		robots:    robots,
		fetcher:   fetcher,
		userAgent: userAgent,
	}, nil
}

// Request returns the resolved request of the page.
func (p *Page) Request() *Request {
	return p.request
}

// Robots returns the robots policy governing the page.
func (p *Page) Robots() *Robots {
	return p.robots
}

// Init fetches robots.txt for the page's site unless a policy was supplied.
func (p *Page) Init(ctx context.Context) error {
	if p.robots != nil {
		return nil
	}
	robots, err := FetchRobots(ctx, p.fetcher, p.request, p.userAgent)
	if err != nil {
		return err
	}
	p.robots = robots
	return nil
}

// Retrieve fetches the page and extracts its links.
func (p *Page) Retrieve(ctx context.Context) error {
	resp, err := p.fetcher.Fetch(ctx, p.request.URL())
	if err != nil {
		return fmt.Errorf("fetch page: %w", err)
	}
	p.response = resp
	p.fetchedAt = time.Now().UTC()
	if err := p.parse(); err != nil {
		return err
	}
	p.retrieved = true
	return nil
}

func (p *Page) parse() error {
	contentType := p.response.ContentType()
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "html") {
		return nil
	}
	reader, err := charset.NewReader(bytes.NewReader(p.response.Body), contentType)
	if err != nil {
		return fmt.Errorf("decode page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return fmt.Errorf("parse page: %w", err)
	}
	p.title = strings.TrimSpace(doc.Find("title").First().Text())

	base := p.request
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if resolved, err := p.request.Resolve(href); err == nil {
			if r, err := NewRequest(resolved); err == nil {
				base = r
			}
		}
	}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		raw, _ := s.Attr("href")
		if skipHref(raw) {
			return
		}
		abs, err := base.Resolve(raw)
		if err != nil {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		target, err := url.Parse(abs)
		if err != nil {
			return
		}
		if sameHost(p.request.parsed(), target) {
			p.internal = append(p.internal, NewHref(abs))
			return
		}
		p.external = append(p.external, NewHref(abs))
	})
	return nil
}

func skipHref(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return true
	}
	lower := strings.ToLower(raw)
	for _, prefix := range []string{"mailto:", "javascript:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// InternalHrefs returns same-host links in document order, de-duplicated.
func (p *Page) InternalHrefs() []Href {
	out := make([]Href, len(p.internal))
	copy(out, p.internal)
	return out
}

// ExternalHrefs returns links that point at other hosts.
func (p *Page) ExternalHrefs() []Href {
	out := make([]Href, len(p.external))
	copy(out, p.external)
	return out
}

// Title returns the document title.
func (p *Page) Title() string {
	return p.title
}

// Body returns the raw response body.
func (p *Page) Body() []byte {
	return p.response.Body
}

// StatusCode returns the HTTP status of the retrieval.
func (p *Page) StatusCode() int {
	return p.response.StatusCode
}

// Record converts a retrieved page into its persistent form. ContentHash,
// RunID and RecordedAt are left for the data provider to fill.
func (p *Page) Record() (PageRecord, error) {
	if !p.retrieved {
		return PageRecord{}, fmt.Errorf("%s: %w", p.request.URL(), ErrNotRetrieved)
	}
	return PageRecord{
		URL:           p.request.URL(),
		FinalURL:      p.response.URL,
		Domain:        p.request.Domain(),
		Extension:     p.request.Extension(),
		StatusCode:    p.response.StatusCode,
		Title:         p.title,
		InternalLinks: hrefStrings(p.internal),
		ExternalLinks: hrefStrings(p.external),
		FetchedAt:     p.fetchedAt,
	}, nil
}

func hrefStrings(hrefs []Href) []string {
	out := make([]string, 0, len(hrefs))
	for _, h := range hrefs {
		out = append(out, h.Raw())
	}
	return out
}
