package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// Config captures every knob that influences a discovery run. Values come
// from the application config; see internal/config.
type Config struct {
	// SearchURL is the fully built first results page.
	SearchURL string
	// BaseURL is the site origin used to build detail URLs.
	BaseURL     string
	DetailPath  string
	IDParam     string
	OffsetParam string
	PageSize    int
	PlatformMax int
	// Limit is the number of search results the run may walk.
	Limit              int
	Workers            int
	UnavailableMarkers []string
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if _, err := url.ParseRequestURI(c.SearchURL); err != nil {
		return fmt.Errorf("search url %q is invalid: %w", c.SearchURL, err)
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("base url %q is invalid: %w", c.BaseURL, err)
	}
	if !strings.HasPrefix(c.DetailPath, "/") {
		return fmt.Errorf("detail path must start with /")
	}
	if c.IDParam == "" {
		return fmt.Errorf("id param must be set")
	}
	if c.OffsetParam == "" {
		return fmt.Errorf("offset param must be set")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be > 0")
	}
	if c.PlatformMax <= 0 {
		return fmt.Errorf("platform max must be > 0")
	}
	if c.Limit <= 0 {
		return fmt.Errorf("limit must be > 0")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	return nil
}

// DetailURL builds the canonical detail page URL for id.
func (c Config) DetailURL(id string) string {
	return fmt.Sprintf("%s%s?%s=%s", strings.TrimRight(c.BaseURL, "/"), c.DetailPath, c.IDParam, url.QueryEscape(id))
}

// PageURL returns the results page n (0-based) by setting the offset param.
func (c Config) PageURL(n int) (string, error) {
	u, err := url.Parse(c.SearchURL)
	if err != nil {
		return "", fmt.Errorf("parse search url: %w", err)
	}
	q := u.Query()
	q.Set(c.OffsetParam, fmt.Sprint(n*c.PageSize))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
