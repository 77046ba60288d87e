package crawler_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dwellist/internal/crawler"
	"github.com/JakeFAU/dwellist/internal/dataset"
	"github.com/JakeFAU/dwellist/internal/extract"
	"github.com/JakeFAU/dwellist/internal/listing"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type staticIDs struct{}

func (staticIDs) NewID() (string, error) { return "run-1", nil }

var engineDate = time.Date(2024, 7, 14, 8, 0, 0, 0, time.UTC)

func existingDataset(t *testing.T, ids ...string) *dataset.Dataset {
	t.Helper()
	d := dataset.New()
	for _, id := range ids {
		require.NoError(t, d.Append(dataset.Row{"id": id, "title": "old " + id}))
	}
	return d
}

func datasetIDs(d *dataset.Dataset) []string {
	out := make([]string, 0, d.Len())
	for _, r := range d.Rows() {
		out = append(out, r["id"])
	}
	return out
}

func newEngine(t *testing.T, cfg crawler.Config, fetcher crawler.Fetcher, store crawler.Store) *crawler.Engine {
	t.Helper()
	clock := fixedClock{t: engineDate}
	ex := extract.New(extract.DefaultRules(), extract.Options{Clock: clock, UnavailableMarkers: cfg.UnavailableMarkers})
	e, err := crawler.NewEngine(cfg, crawler.EngineDeps{
		Fetcher:   fetcher,
		Extractor: ex,
		Store:     store,
		Clock:     clock,
		IDs:       staticIDs{},
	})
	require.NoError(t, err)
	return e
}

// TestEngineRunIncrementalMerge is the existing {1,2} + candidates {2,3,4} scenario
// where listing 3 has been withdrawn.
func TestEngineRunIncrementalMerge(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	fetcher := &MockFetcher{}
	store := &MockStore{}

	fetcher.On("Fetch", mock.Anything, cfg.SearchURL).
		Return(htmlPage(t, cfg.SearchURL, resultsHTML("3", []int{2, 3, 4})), nil)
	fetcher.On("Fetch", mock.Anything, cfg.DetailURL("3")).
		Return(htmlPage(t, cfg.DetailURL("3"), "<html><body><h2>"+goneMarker+"</h2></body></html>"), nil)
	fetcher.On("Fetch", mock.Anything, cfg.DetailURL("4")).
		Return(htmlPage(t, cfg.DetailURL("4"), detailHTML("Room four")), nil)

	store.On("Load", mock.Anything).Return(existingDataset(t, "1", "2"), nil)
	var saved *dataset.Dataset
	store.On("Save", mock.Anything, mock.AnythingOfType("*dataset.Dataset")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*dataset.Dataset) }).
		Return(nil)

	summary, err := newEngine(t, cfg, fetcher, store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.AlreadyLogged)
	assert.Equal(t, 1, summary.Unavailable)
	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 1, summary.Pages)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, "run-1", summary.RunID)

	require.NotNil(t, saved)
	require.Equal(t, []string{"1", "2", "4"}, datasetIDs(saved))
	four := saved.Rows()[2]
	assert.Equal(t, "14-07-2024", four[listing.ColumnDateScraped])
	assert.Equal(t, "Room four", four[listing.ColumnTitle])
	assert.Equal(t, "500", four["room_1_price"])

	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, cfg.DetailURL("2"))
	store.AssertNumberOfCalls(t, "Save", 1)
}

func TestEngineRunWalksPages(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Limit = 20
	fetcher := &MockFetcher{}
	store := &MockStore{}

	page2, err := cfg.PageURL(1)
	require.NoError(t, err)
	fetcher.On("Fetch", mock.Anything, cfg.SearchURL).
		Return(htmlPage(t, cfg.SearchURL, resultsHTML("1000+", []int{100, 101})), nil)
	// 101 shows up again on page two and must not be fetched twice.
	fetcher.On("Fetch", mock.Anything, page2).
		Return(htmlPage(t, page2, resultsHTML("1000+", []int{101, 102})), nil)
	for _, id := range []string{"100", "101", "102"} {
		fetcher.On("Fetch", mock.Anything, cfg.DetailURL(id)).
			Return(htmlPage(t, cfg.DetailURL(id), detailHTML("Room "+id)), nil)
	}

	store.On("Load", mock.Anything).Return(dataset.New(), nil)
	var saves []*dataset.Dataset
	store.On("Save", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saves = append(saves, args.Get(1).(*dataset.Dataset)) }).
		Return(nil)

	summary, err := newEngine(t, cfg, fetcher, store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, 3, summary.New)
	assert.Equal(t, 1000, summary.Total)
	require.Len(t, saves, 2, "dataset is saved after every page")
	assert.Equal(t, []string{"100", "101"}, datasetIDs(saves[0]))
	assert.Equal(t, []string{"100", "101", "102"}, datasetIDs(saves[1]))
	fetcher.AssertNumberOfCalls(t, "Fetch", 5)
}

// TestEngineRunStopsAtLimit covers a limit that is not a multiple of the page
// size: the last page is only partly fetched.
func TestEngineRunStopsAtLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Limit = 25
	fetcher := &MockFetcher{}
	store := &MockStore{}

	pageIDs := func(first int) []int {
		out := make([]int, 10)
		for i := range out {
			out[i] = first + i
		}
		return out
	}
	fetcher.On("Fetch", mock.Anything, cfg.SearchURL).
		Return(htmlPage(t, cfg.SearchURL, resultsHTML("1000", pageIDs(1))), nil)
	for n := 1; n < 3; n++ {
		pageURL, err := cfg.PageURL(n)
		require.NoError(t, err)
		fetcher.On("Fetch", mock.Anything, pageURL).
			Return(htmlPage(t, pageURL, resultsHTML("1000", pageIDs(n*10+1))), nil)
	}
	for id := 1; id <= 30; id++ {
		u := cfg.DetailURL(strconv.Itoa(id))
		fetcher.On("Fetch", mock.Anything, u).Return(htmlPage(t, u, detailHTML("Room")), nil)
	}

	store.On("Load", mock.Anything).Return(dataset.New(), nil)
	var saved *dataset.Dataset
	store.On("Save", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*dataset.Dataset) }).
		Return(nil)

	summary, err := newEngine(t, cfg, fetcher, store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Pages)
	assert.Equal(t, 25, summary.New)
	require.NotNil(t, saved)
	assert.Equal(t, 25, saved.Len())
	// Three results pages plus 25 detail pages.
	fetcher.AssertNumberOfCalls(t, "Fetch", 28)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, cfg.DetailURL("26"))
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, cfg.DetailURL("30"))
}

// TestEngineRunCanceledReturnsError checks that a run interrupted between
// pages keeps what it saved and reports the cancellation.
func TestEngineRunCanceledReturnsError(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Limit = 20
	fetcher := &MockFetcher{}
	store := &MockStore{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher.On("Fetch", mock.Anything, cfg.SearchURL).
		Return(htmlPage(t, cfg.SearchURL, resultsHTML("1000", []int{100})), nil)
	fetcher.On("Fetch", mock.Anything, cfg.DetailURL("100")).
		Return(htmlPage(t, cfg.DetailURL("100"), detailHTML("Room 100")), nil)

	store.On("Load", mock.Anything).Return(dataset.New(), nil)
	store.On("Save", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil)

	summary, err := newEngine(t, cfg, fetcher, store).Run(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Pages)
	assert.Equal(t, 1, summary.New)
	store.AssertNumberOfCalls(t, "Save", 1)
	fetcher.AssertNumberOfCalls(t, "Fetch", 2)
}

func TestEngineRunSearchUnavailableIsFatal(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	fetcher := &MockFetcher{}
	store := &MockStore{}
	store.On("Load", mock.Anything).Return(dataset.New(), nil)
	fetcher.On("Fetch", mock.Anything, cfg.SearchURL).
		Return(crawler.Page{}, &crawler.NetworkError{URL: cfg.SearchURL, Err: errors.New("dial tcp: refused")})

	_, err := newEngine(t, cfg, fetcher, store).Run(context.Background())
	require.ErrorIs(t, err, crawler.ErrSearchUnavailable)
	var netErr *crawler.NetworkError
	require.ErrorAs(t, err, &netErr)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestEngineRunSkipsFailedResultsPage(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Limit = 20
	fetcher := &MockFetcher{}
	store := &MockStore{}

	page2, err := cfg.PageURL(1)
	require.NoError(t, err)
	fetcher.On("Fetch", mock.Anything, cfg.SearchURL).
		Return(htmlPage(t, cfg.SearchURL, resultsHTML("20", []int{1})), nil)
	fetcher.On("Fetch", mock.Anything, page2).
		Return(crawler.Page{}, &crawler.RedirectError{URL: page2, StatusCode: 302, Location: "/"})
	fetcher.On("Fetch", mock.Anything, cfg.DetailURL("1")).
		Return(htmlPage(t, cfg.DetailURL("1"), detailHTML("one")), nil)
	store.On("Load", mock.Anything).Return(dataset.New(), nil)
	store.On("Save", mock.Anything, mock.Anything).Return(nil)

	summary, err := newEngine(t, cfg, fetcher, store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pages)
	assert.Equal(t, 1, summary.New)
}

func TestEngineRunReportsFinalSaveFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	fetcher := &MockFetcher{}
	store := &MockStore{}
	fetcher.On("Fetch", mock.Anything, cfg.SearchURL).
		Return(htmlPage(t, cfg.SearchURL, resultsHTML("0", nil)), nil)
	store.On("Load", mock.Anything).Return(dataset.New(), nil)
	store.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := newEngine(t, cfg, fetcher, store).Run(context.Background())
	require.ErrorContains(t, err, "disk full")
}

func TestEngineRunLoadFailure(t *testing.T) {
	t.Parallel()

	store := &MockStore{}
	store.On("Load", mock.Anything).Return(nil, errors.New("corrupt"))

	_, err := newEngine(t, testConfig(), &MockFetcher{}, store).Run(context.Background())
	require.ErrorContains(t, err, "load dataset")
}

func TestNewEngineValidates(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.PageSize = 0
	_, err := crawler.NewEngine(cfg, crawler.EngineDeps{})
	require.Error(t, err)

	_, err = crawler.NewEngine(testConfig(), crawler.EngineDeps{})
	require.Error(t, err)
}
