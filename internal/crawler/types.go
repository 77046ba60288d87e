package crawler

import (
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/dwellist/internal/listing"
)

// Page is a successfully fetched and parsed HTML document.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	Doc        *goquery.Document
	Duration   time.Duration
}

// Pagination is the result of scanning the first results page.
type Pagination struct {
	// Total is the result count the site reports, or the platform maximum
	// when the count is rendered as "N+".
	Total int
	// Pages is the number of results pages to walk.
	Pages int
	// Capped is set when the reported count hit the platform maximum.
	Capped bool
}

// DiscoveryResult is what one results page yielded.
type DiscoveryResult struct {
	Candidates []listing.Candidate
	// AlreadyLogged counts cards skipped because the dataset has them.
	AlreadyLogged int
	Promoted      int
	// Anomalies counts ids dropped as already logged a second time.
	Anomalies int
	// Duplicates counts ids already emitted earlier in this run.
	Duplicates int
	// Malformed counts cards with no parseable id.
	Malformed int
	// OverLimit counts new cards skipped once the run reached its limit.
	OverLimit int
	// Cards is the number of result cards on the page.
	Cards int
}

// Fetch outcomes used in logs and metrics.
const (
	OutcomeCollected   = "collected"
	OutcomeUnavailable = "unavailable"
	OutcomeFailed      = "failed"
)

// BatchResult aggregates one FetchAll call.
type BatchResult struct {
	Records     []listing.Record
	Collected   int
	Unavailable int
	Failed      int
}

// RunSummary reports the counters of a whole discovery run.
type RunSummary struct {
	RunID         string
	Pages         int
	Total         int
	New           int
	AlreadyLogged int
	Unavailable   int
	Failed        int
	Anomalies     int
	Rows          int
	Duration      time.Duration
}
