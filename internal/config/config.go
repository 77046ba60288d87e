// Package config loads and validates dwellist configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/dwellist/internal/crawler"
	"github.com/JakeFAU/dwellist/internal/logging"
)

// Store drivers.
const (
	StoreCSV      = "csv"
	StorePostgres = "postgres"
)

// Diagnostics drivers.
const (
	DiagnosticsFile = "file"
	DiagnosticsGCS  = "gcs"
	DiagnosticsLog  = "log"
	DiagnosticsNone = "none"
)

// fixedSearchQuery is sent with every search regardless of filters.
var fixedSearchQuery = map[string]string{
	"nmsq_mode":      "normal",
	"action":         "search",
	"flatshare_type": "offered",
}

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site        SiteConfig        `mapstructure:"site"`
	Search      SearchConfig      `mapstructure:"search"`
	Crawler     CrawlerConfig     `mapstructure:"crawler"`
	Store       StoreConfig       `mapstructure:"store"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     logging.Config    `mapstructure:"logging"`
}

// SiteConfig describes the listings site layout.
type SiteConfig struct {
	BaseURL            string   `mapstructure:"base_url" validate:"required,url"`
	SearchPath         string   `mapstructure:"search_path" validate:"required,startswith=/"`
	DetailPath         string   `mapstructure:"detail_path" validate:"required,startswith=/"`
	IDParam            string   `mapstructure:"id_param" validate:"required"`
	OffsetParam        string   `mapstructure:"offset_param" validate:"required"`
	PageSize           int      `mapstructure:"page_size" validate:"gt=0"`
	PlatformMax        int      `mapstructure:"platform_max" validate:"gt=0"`
	UnavailableMarkers []string `mapstructure:"unavailable_markers"`
}

// SearchConfig selects which listings a run walks.
type SearchConfig struct {
	ListingsToScrape int               `mapstructure:"listings_to_scrape" validate:"gt=0"`
	Filters          map[string]string `mapstructure:"filters"`
}

// CrawlerConfig governs fetch concurrency and politeness.
type CrawlerConfig struct {
	Concurrency    int           `mapstructure:"concurrency" validate:"gte=0"`
	UserAgent      string        `mapstructure:"user_agent" validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst" validate:"gte=0"`
	// Timezone stamps date_scraped and the available_from filter.
	Timezone string `mapstructure:"timezone"`
}

// StoreConfig selects the dataset backend.
type StoreConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=csv postgres"`
	Path     string `mapstructure:"path" validate:"required_if=Driver csv"`
	DSN      string `mapstructure:"dsn" validate:"required_if=Driver postgres"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns" validate:"gte=0"`
}

// DiagnosticsConfig selects where raw pages for failed extractions go.
type DiagnosticsConfig struct {
	Driver    string `mapstructure:"driver" validate:"oneof=file gcs log none"`
	Dir       string `mapstructure:"dir" validate:"required_if=Driver file"`
	GCSBucket string `mapstructure:"gcs_bucket" validate:"required_if=Driver gcs"`
	Prefix    string `mapstructure:"prefix"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"gt=0,lte=65535"`
}

// Load builds a Config from an optional .env file, disk and environment.
// Environment variables use the DWELLIST_ prefix, e.g. DWELLIST_STORE_PATH.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("DWELLIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://www.spareroom.co.uk")
	v.SetDefault("site.search_path", "/flatshare/search.pl")
	v.SetDefault("site.detail_path", "/flatshare/flatshare_detail.pl")
	v.SetDefault("site.id_param", "flatshare_id")
	v.SetDefault("site.offset_param", "offset")
	v.SetDefault("site.page_size", 10)
	v.SetDefault("site.platform_max", 1000)
	v.SetDefault("site.unavailable_markers", []string{
		"Sorry, this listing is no longer available",
		"Sorry, this room is no longer available",
	})
	v.SetDefault("search.listings_to_scrape", 100)
	v.SetDefault("search.filters", map[string]string{})
	v.SetDefault("crawler.concurrency", 5)
	v.SetDefault("crawler.user_agent", "dwellist/0.1 (+https://github.com/JakeFAU/dwellist)")
	v.SetDefault("crawler.request_timeout", "20s")
	v.SetDefault("crawler.rate_limit_rps", 2.0)
	v.SetDefault("crawler.rate_limit_burst", 2)
	v.SetDefault("crawler.timezone", "Europe/London")
	v.SetDefault("store.driver", StoreCSV)
	v.SetDefault("store.path", "data/listings.csv")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.table", "listings")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("diagnostics.driver", DiagnosticsFile)
	v.SetDefault("diagnostics.dir", "data/diagnostics")
	v.SetDefault("diagnostics.gcs_bucket", "")
	v.SetDefault("diagnostics.prefix", "diagnostics")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Crawler.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Crawler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("crawler.timezone: %w", err)
	}
	return loc, nil
}

// searchFilterDefaults returns the filters applied when none are configured.
func searchFilterDefaults(today time.Time) map[string]string {
	return map[string]string{
		"available_from":       today.Format(time.DateOnly),
		"bills_inc":            "Yes",
		"days_of_wk_available": "7 days a week",
		"ensuite":              "Y",
		"gayshare":             "N",
		"landlord":             "live_out",
		"min_beds":             "0",
		"min_rent":             "0",
		"min_term":             "0",
		"miles_from_max":       "0",
	}
}

// SearchURL builds the first results page URL. Configured filters override
// the defaults; a filter configured as "" removes it. "search_term" is
// accepted as an alias for the site's "search" parameter.
func (c Config) SearchURL(today time.Time) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.Site.BaseURL, "/") + c.Site.SearchPath)
	if err != nil {
		return "", fmt.Errorf("parse search url: %w", err)
	}
	filters := searchFilterDefaults(today)
	for k, v := range c.Search.Filters {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "search_term" {
			key = "search"
		}
		filters[key] = strings.TrimSpace(v)
	}
	q := url.Values{}
	for k, v := range fixedSearchQuery {
		q.Set(k, v)
	}
	for k, v := range filters {
		if v == "" {
			continue
		}
		if _, fixed := fixedSearchQuery[k]; fixed {
			continue
		}
		q.Set(k, v)
	}
	// Encode sorts by key.
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CrawlerConfig converts the loaded settings into the engine configuration.
func (c Config) CrawlerConfig(today time.Time) (crawler.Config, error) {
	searchURL, err := c.SearchURL(today)
	if err != nil {
		return crawler.Config{}, err
	}
	return crawler.Config{
		SearchURL:          searchURL,
		BaseURL:            c.Site.BaseURL,
		DetailPath:         c.Site.DetailPath,
		IDParam:            c.Site.IDParam,
		OffsetParam:        c.Site.OffsetParam,
		PageSize:           c.Site.PageSize,
		PlatformMax:        c.Site.PlatformMax,
		Limit:              c.Search.ListingsToScrape,
		Workers:            c.Crawler.Concurrency,
		UnavailableMarkers: c.Site.UnavailableMarkers,
	}, nil
}
