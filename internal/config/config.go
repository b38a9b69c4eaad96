// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/polite-crawler/internal/crawler"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Data    DataConfig    `mapstructure:"data"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// CrawlerConfig governs the traversal.
type CrawlerConfig struct {
	Seed             string   `mapstructure:"seed"`
	UserAgent        string   `mapstructure:"user_agent"`
	DomainExtensions []string `mapstructure:"domain_extensions"`
	MaxPageDepth     int      `mapstructure:"max_page_depth"`
	MaxSitemapDepth  int      `mapstructure:"max_sitemap_depth"`
	RespectRobots    bool     `mapstructure:"respect_robots"`
	HrefPolicy       string   `mapstructure:"href_policy"`
}

// HTTPConfig configures the HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int `mapstructure:"max_body_bytes"`
	MaxRetries     int `mapstructure:"max_retries"`
}

// DataConfig selects and locates the data provider.
type DataConfig struct {
	Provider string `mapstructure:"provider"`
	Dir      string `mapstructure:"dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"url":                    "crawler.seed",
	"data-provider":          "data.provider",
	"only-domain-extensions": "crawler.domain_extensions",
}

// Load builds a Config from defaults, the optional file at path, CRAWLER_*
// environment variables and any flags in flags that were set.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Crawler.Seed = strings.TrimSpace(cfg.Crawler.Seed)
	cfg.Crawler.DomainExtensions = crawler.NormalizeExtensions(splitCSV(cfg.Crawler.DomainExtensions))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.seed", "")
	v.SetDefault("crawler.user_agent", crawler.DefaultUserAgent)
	v.SetDefault("crawler.domain_extensions", []string{})
	v.SetDefault("crawler.max_page_depth", crawler.DefaultMaxPageDepth)
	v.SetDefault("crawler.max_sitemap_depth", crawler.DefaultMaxSitemapDepth)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.href_policy", string(crawler.HrefPolicyKnown))
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_body_bytes", 10*1024*1024)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("data.provider", "json")
	v.SetDefault("data.dir", "data")
	v.SetDefault("logging.development", false)
	v.SetDefault("metrics.textfile", "")
}

// splitCSV expands comma-joined entries, which is how a single environment
// variable or config string carries a list.
func splitCSV(in []string) []string {
	var out []string
	for _, item := range in {
		out = append(out, strings.Split(item, ",")...)
	}
	return out
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must be >= 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Crawler.MaxPageDepth < 0 {
		return fmt.Errorf("crawler.max_page_depth must be >= 0")
	}
	if c.Crawler.MaxSitemapDepth < 0 {
		return fmt.Errorf("crawler.max_sitemap_depth must be >= 0")
	}
	if strings.TrimSpace(c.Data.Provider) == "" {
		return fmt.Errorf("data.provider must be set")
	}
	return c.CrawlerSettings().Validate()
}

// CrawlerSettings converts the crawler section into crawler.Config.
func (c Config) CrawlerSettings() crawler.Config {
	return crawler.Config{
		UserAgent:        c.Crawler.UserAgent,
		DomainExtensions: c.Crawler.DomainExtensions,
		MaxPageDepth:     explicitDepth(c.Crawler.MaxPageDepth),
		MaxSitemapDepth:  explicitDepth(c.Crawler.MaxSitemapDepth),
		RespectRobots:    c.Crawler.RespectRobots,
		HrefPolicy:       crawler.HrefPolicy(strings.ToLower(strings.TrimSpace(c.Crawler.HrefPolicy))),
	}
}

// explicitDepth keeps a configured 0 meaning "none" once it reaches the
// crawler, where a zero limit means the default.
func explicitDepth(depth int) int {
	if depth == 0 {
		return crawler.NoExpansion
	}
	return depth
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
