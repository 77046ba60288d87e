// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/dwellist/internal/crawler"
)

// DefaultTimeout bounds a single request when Config.Timeout is unset.
const DefaultTimeout = 20 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Headers are added to every request.
	Headers map[string]string
}

// Fetcher implements crawler.Fetcher using the Colly collector. Redirects
// are never followed; they surface as *crawler.RedirectError.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// fetchState collects what the hooks observed during one visit.
type fetchState struct {
	page     crawler.Page
	status   int
	location string
	err      error
}

// New builds a Fetcher. Clones share the base collector's HTTP backend, so
// transport, timeout and redirect policy are configured once here.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	opts := []colly.CollectorOption{
		colly.Async(false),
		// Visits are tracked in a store shared by every clone; a listing
		// fetched on an earlier run or page must still be fetchable.
		colly.AllowURLRevisit(),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	c.SetRedirectHandler(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	})

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly and parses the body.
func (f *Fetcher) Fetch(ctx context.Context, url string) (crawler.Page, error) {
	state := &fetchState{}
	start := time.Now()
	collector := f.baseCollector.Clone()
	f.configureCollectorHooks(collector, start, state)

	if err := f.runCollector(ctx, collector, url, state); err != nil {
		return crawler.Page{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(state.page.Body))
	if err != nil {
		return crawler.Page{}, fmt.Errorf("parse document %s: %w", url, err)
	}
	state.page.Doc = doc
	if state.page.URL == "" {
		state.page.URL = url
	}
	return state.page, nil
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, start time.Time, state *fetchState) {
	hooks.OnRequest(func(r *colly.Request) {
		for key, value := range f.cfg.Headers {
			r.Headers.Set(key, value)
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		state.page = crawler.Page{
			URL:        r.Request.URL.String(),
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	// Colly reports any status >= 203 here, redirects included because the
	// redirect handler hands back the 3xx response itself. A zero status
	// means the request never got a response.
	hooks.OnError(func(r *colly.Response, err error) {
		state.err = err
		if r == nil {
			return
		}
		state.status = r.StatusCode
		if r.Headers != nil {
			state.location = r.Headers.Get("Location")
		}
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, state *fetchState) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return &crawler.NetworkError{URL: url, Err: fmt.Errorf("colly fetch canceled: %w", ctx.Err())}
	case err := <-done:
		if state.status > 0 {
			return &crawler.RedirectError{URL: url, StatusCode: state.status, Location: state.location}
		}
		if err == nil {
			err = state.err
		}
		if err != nil {
			return &crawler.NetworkError{URL: url, Err: err}
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
