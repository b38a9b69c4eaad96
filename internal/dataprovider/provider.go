// Package dataprovider selects the crawler.DataProvider implementation named
// on the command line.
package dataprovider

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/polite-crawler/internal/crawler"
	jsonprovider "github.com/JakeFAU/polite-crawler/internal/dataprovider/json"
)

// NameJSON selects the JSON file provider.
const NameJSON = "json"

// ErrUnsupported is returned for provider names with no implementation.
var ErrUnsupported = errors.New("unsupported data provider")

// Options carries everything a provider may need.
type Options struct {
	Dir    string
	RunID  string
	Hasher crawler.Hasher
	Clock  crawler.Clock
	Logger *zap.Logger
}

// New returns the provider registered under name.
func New(name string, opts Options) (crawler.DataProvider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameJSON:
		p, err := jsonprovider.New(jsonprovider.Config{
			Dir:    opts.Dir,
			RunID:  opts.RunID,
			Hasher: opts.Hasher,
			Clock:  opts.Clock,
			Logger: opts.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create json provider: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%q: %w", name, ErrUnsupported)
	}
}
