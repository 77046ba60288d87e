package crawler_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dwellist/internal/crawler"
	"github.com/JakeFAU/dwellist/internal/dataset"
	"github.com/JakeFAU/dwellist/internal/listing"
)

// MockFetcher mocks the crawler.Fetcher interface.
type MockFetcher struct {
	mock.Mock
}

// Fetch satisfies crawler.Fetcher.
func (m *MockFetcher) Fetch(ctx context.Context, url string) (crawler.Page, error) {
	args := m.Called(ctx, url)
	return args.Get(0).(crawler.Page), args.Error(1)
}

// MockStore mocks the crawler.Store interface.
type MockStore struct {
	mock.Mock
}

// Load satisfies crawler.Store.
func (m *MockStore) Load(ctx context.Context) (*dataset.Dataset, error) {
	args := m.Called(ctx)
	d, _ := args.Get(0).(*dataset.Dataset)
	return d, args.Error(1)
}

// Save satisfies crawler.Store.
func (m *MockStore) Save(ctx context.Context, d *dataset.Dataset) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

// stubExtractor returns a record carrying the id parsed from the URL and can
// be told to panic for specific ids.
type stubExtractor struct {
	panicOn map[listing.RecordID]bool
}

func (s stubExtractor) Extract(_ context.Context, doc *goquery.Document, url string) listing.Record {
	id, err := listing.IDFromURL(url, "flatshare_id")
	if err != nil {
		panic(err)
	}
	if s.panicOn[id] {
		panic(fmt.Sprintf("extractor exploded on %d", id))
	}
	title := strings.TrimSpace(doc.Find("h1").Text())
	return listing.Record{ID: id, URL: url, Title: &title}
}

type countingLimiter struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (l *countingLimiter) Wait(_ context.Context, url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.urls = append(l.urls, url)
	return l.err
}

func htmlPage(t *testing.T, url, body string) crawler.Page {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return crawler.Page{URL: url, FinalURL: url, StatusCode: 200, Body: []byte(body), Doc: doc}
}

func docOf(t *testing.T, body string) *goquery.Document {
	t.Helper()
	return htmlPage(t, "", body).Doc
}

// resultsHTML renders a results page with one card per id. Ids listed in
// promoted are rendered as featured cards.
func resultsHTML(count string, ids []int, promoted ...int) string {
	featured := make(map[int]bool, len(promoted))
	for _, id := range promoted {
		featured[id] = true
	}
	var b strings.Builder
	b.WriteString("<html><body>")
	if count != "" {
		fmt.Fprintf(&b, `<p class="navcurrent">Showing <strong>1-10</strong> of <strong>%s</strong> results</p>`, count)
	}
	for _, id := range ids {
		class := "panel-listing-result"
		if featured[id] {
			class += " listing-featured"
		}
		fmt.Fprintf(&b, `<article class="%s"><header><a href="/flatshare/flatshare_detail.pl?flatshare_id=%d&amp;search_id=1">Room %d</a></header></article>`, class, id, id)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func detailHTML(title string) string {
	return `<html><body><div id="listing_heading"><h1>` + title + `</h1></div>
<ul class="room-list"><li><strong class="room-list__price">£500 pcm</strong> <small>(double)</small></li></ul></body></html>`
}

const goneMarker = "Sorry, this listing is no longer available"

func testConfig() crawler.Config {
	return crawler.Config{
		SearchURL:          "https://rooms.example.com/flatshare/search.pl?action=search",
		BaseURL:            "https://rooms.example.com",
		DetailPath:         "/flatshare/flatshare_detail.pl",
		IDParam:            "flatshare_id",
		OffsetParam:        "offset",
		PageSize:           10,
		PlatformMax:        1000,
		Limit:              1000,
		Workers:            2,
		UnavailableMarkers: []string{goneMarker},
	}
}
