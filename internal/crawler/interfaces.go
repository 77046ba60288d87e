package crawler

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/dwellist/internal/dataset"
	"github.com/JakeFAU/dwellist/internal/listing"
)

// Fetcher performs a single GET without following redirects. Failures are
// *RedirectError or *NetworkError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Extractor builds a Record from a detail page.
type Extractor interface {
	Extract(ctx context.Context, doc *goquery.Document, url string) listing.Record
}

// Store loads and fully rewrites the dataset.
type Store interface {
	Load(ctx context.Context) (*dataset.Dataset, error)
	Save(ctx context.Context, d *dataset.Dataset) error
}

// Limiter throttles requests per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Recorder receives run counters, typically Prometheus collectors.
type Recorder interface {
	PageScanned(result string)
	Candidates(result string, n int)
	DetailFetched(outcome string, n int)
	DatasetRows(n int)
	RunDuration(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) PageScanned(string)        {}
func (nopRecorder) Candidates(string, int)    {}
func (nopRecorder) DetailFetched(string, int) {}
func (nopRecorder) DatasetRows(int)           {}
func (nopRecorder) RunDuration(time.Duration) {}
