package extract

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/net/html"

	"github.com/JakeFAU/dwellist/internal/diagnostics"
	"github.com/JakeFAU/dwellist/internal/listing"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type captureSink struct {
	mu     sync.Mutex
	events []diagnostics.Event
}

func (s *captureSink) Record(_ context.Context, evt diagnostics.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

var runDate = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

func docFromString(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

func fixture(t *testing.T) *goquery.Document {
	t.Helper()
	// #nosec G304 -- fixture path is fixed.
	raw, err := os.ReadFile("testdata/detail.html")
	require.NoError(t, err)
	return docFromString(t, string(raw))
}

func newTestExtractor(sink diagnostics.Sink, logger *zap.Logger) *Extractor {
	return New(DefaultRules(), Options{
		Clock:              fixedClock{t: runDate},
		Sink:               sink,
		UnavailableMarkers: []string{"Sorry, this listing is no longer available"},
		Logger:             logger,
	})
}

// TestExtractFullPage walks every rule against a complete detail page.
func TestExtractFullPage(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor(nil, nil)
	rec := ex.Extract(context.Background(), fixture(t), "https://www.example.com/flatshare/flatshare_detail.pl?flatshare_id=4")

	require.Equal(t, listing.RecordID(4), rec.ID)
	require.True(t, rec.Available)
	require.NotNil(t, rec.Title)
	assert.Equal(t, "Sunny double near Dalston", *rec.Title)
	assert.Equal(t, "Large bright room. Close to the Overground. Bills included.", rec.Description)
	assert.Equal(t, listing.KeyFeatures{
		Type:           "Flatshare",
		Area:           "Hackney",
		Postcode:       "E8",
		NearestStation: "Dalston Junction",
	}, rec.Key)
	assert.Equal(t, []listing.RoomPrice{{Price: 750, Type: "double"}, {Price: 433, Type: "single"}}, rec.Prices)
	assert.Equal(t, map[string]string{
		"available":       "Now",
		"minimum_term":    "6 months",
		"deposit":         "£750.00",
		"flatmates":       "3",
		"min_age_max_age": "21 / 35",
		"smoker":          "No",
	}, rec.Features)
	assert.Equal(t, "https://photos.example.com/main.jpg", rec.MainImage)
	assert.Equal(t, []string{"https://photos.example.com/1.jpg", "https://photos.example.com/2.jpg"}, rec.Images)
	require.NotNil(t, rec.Latitude)
	require.NotNil(t, rec.Longitude)
	assert.InDelta(t, 51.5465, *rec.Latitude, 1e-9)
	assert.InDelta(t, -0.0553, *rec.Longitude, 1e-9)
	assert.Equal(t, runDate, rec.ScrapedOn)

	fields := rec.Fields()
	assert.Equal(t, "Now", fields["available"])
	assert.Equal(t, "03-06-2024", fields["date_scraped"])
	assert.Equal(t, "https://photos.example.com/1.jpg", fields["image_1"])
}

func TestExtractWholePropertyPrice(t *testing.T) {
	t.Parallel()

	doc := docFromString(t, `<html><body>
		<section class="feature--price-whole-property">
			<h3 class="feature__heading">£1,200 pcm total</h3>
		</section></body></html>`)
	rec := newTestExtractor(nil, nil).Extract(context.Background(), doc, "https://x/?flatshare_id=8")
	require.Equal(t, []listing.RoomPrice{{Price: 1200, Type: "Whole Property"}}, rec.Prices)
}

// TestExtractMissingPriceEmitsDiagnostic checks the page dump is handed to the sink.
func TestExtractMissingPriceEmitsDiagnostic(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	core, logs := observer.New(zap.ErrorLevel)
	doc := docFromString(t, `<html><body><p class="detaildesc">No prices here</p></body></html>`)

	ctx := diagnostics.WithRunID(context.Background(), "run-42")
	rec := newTestExtractor(sink, zap.New(core)).Extract(ctx, doc, "https://x/?flatshare_id=15")

	require.Empty(t, rec.Prices)
	require.Len(t, sink.events, 1)
	evt := sink.events[0]
	assert.Equal(t, diagnostics.KindPriceMissing, evt.Kind)
	assert.Equal(t, listing.RecordID(15), evt.RecordID)
	assert.Equal(t, "run-42", evt.RunID)
	assert.Contains(t, string(evt.Body), "No prices here")
	assert.Equal(t, 1, logs.FilterMessage("no room or whole-property price found").Len())
}

// TestExtractDegradesPerField checks an empty page still yields a stamped record.
func TestExtractDegradesPerField(t *testing.T) {
	t.Parallel()

	rec := newTestExtractor(nil, nil).Extract(context.Background(), docFromString(t, "<html></html>"), "https://x/?flatshare_id=3")
	require.Equal(t, listing.RecordID(3), rec.ID)
	require.Nil(t, rec.Title)
	require.Nil(t, rec.Latitude)
	require.Empty(t, rec.Description)
	require.Empty(t, rec.MainImage)
	require.Equal(t, runDate, rec.ScrapedOn)
}

func TestStepRecoversFromPanic(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	ex := newTestExtractor(nil, zap.New(core))

	ran := false
	ex.step(ex.logger, "title", func() { panic("boom") })
	ex.step(ex.logger, "description", func() { ran = true })

	require.True(t, ran, "later rules keep running")
	entries := logs.FilterMessage("field extraction failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "title", entries[0].ContextMap()["field"])
	assert.Equal(t, "boom", entries[0].ContextMap()["panic"])
}

func TestExtractInvalidSelectorDegrades(t *testing.T) {
	t.Parallel()

	ex := newTestExtractor(nil, nil)
	rules := DefaultRules()
	rules.Title = "[[["
	ex.rules = rules

	rec := ex.Extract(context.Background(), fixture(t), "https://x/?flatshare_id=4")
	require.Nil(t, rec.Title)
	require.Len(t, rec.Prices, 2)
}

func TestExtractMarksUnavailable(t *testing.T) {
	t.Parallel()

	doc := docFromString(t, `<html><body><h2>Sorry, this listing is no longer available</h2></body></html>`)
	rec := newTestExtractor(nil, nil).Extract(context.Background(), doc, "https://x/?flatshare_id=3")
	require.False(t, rec.Available)
}

func TestExtractLogsUnrenderableDocument(t *testing.T) {
	t.Parallel()

	root := &html.Node{Type: html.DocumentNode}
	root.AppendChild(&html.Node{Type: html.ErrorNode})
	doc := goquery.NewDocumentFromNode(root)

	core, logs := observer.New(zap.DebugLevel)
	rec := newTestExtractor(nil, zap.New(core)).Extract(context.Background(), doc, "https://x/?flatshare_id=8")

	require.Equal(t, listing.RecordID(8), rec.ID)
	require.True(t, rec.Available)
	entries := logs.FilterMessage("render page html").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "https://x/?flatshare_id=8", entries[0].ContextMap()["url"])
}

func TestFeaturesKeepInnerWhitespace(t *testing.T) {
	t.Parallel()

	doc := docFromString(t, `<dl class="feature-list">
		<dt>Bills included?</dt><dd>
			Yes
		</dd>
		<dt>Household</dt><dd>Quiet flat,
two cats</dd>
		<dt>Parking</dt><dd>Street   permit</dd>
	</dl>`)

	assert.Equal(t, map[string]string{
		"bills_included": "Yes",
		"household":      "Quiet flat,\ntwo cats",
		"parking":        "Street   permit",
	}, DefaultRules().Features(doc))
}

func TestImagesRequireMainImage(t *testing.T) {
	t.Parallel()

	doc := docFromString(t, `<div class="photo-gallery__thumbnails"><a href="//img/1.jpg"></a></div>`)
	main, gallery := DefaultRules().Images(doc)
	require.Empty(t, main)
	require.Nil(t, gallery)
}

func TestKeyFieldsIgnoresExtraItems(t *testing.T) {
	t.Parallel()

	doc := docFromString(t, `<ul class="key-features"><li>Studio</li><li>Bow</li><li>E3</li><li>Bow Road</li><li>extra</li></ul>`)
	kf := DefaultRules().KeyFields(doc)
	require.Equal(t, listing.KeyFeatures{Type: "Studio", Area: "Bow", Postcode: "E3", NearestStation: "Bow Road"}, kf)
}
