package crawler

import "strings"

// Href is a link token discovered in a document. It stays raw until it is
// resolved against the Request of the document it came from.
type Href struct {
	raw string
}

// NewHref wraps a raw link token.
func NewHref(raw string) Href {
	return Href{raw: strings.TrimSpace(raw)}
}

// Raw returns the token as found in the document.
func (h Href) Raw() string {
	return h.raw
}

// URL resolves the href to a normalized absolute URL using base.
func (h Href) URL(base *Request) (string, error) {
	return base.Resolve(h.raw)
}

func hrefsFromStrings(values []string) []Href {
	out := make([]Href, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		h := NewHref(v)
		if h.raw == "" {
			continue
		}
		if _, ok := seen[h.raw]; ok {
			continue
		}
		seen[h.raw] = struct{}{}
		out = append(out, h)
	}
	return out
}
