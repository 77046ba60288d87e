// Package extract turns a listing detail page into a listing.Record. Each
// field is read by its own rule; a rule that fails leaves its field empty
// and logs, and never stops the remaining rules from running.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/dwellist/internal/diagnostics"
	"github.com/JakeFAU/dwellist/internal/listing"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

var lineBreaks = regexp.MustCompile(`[ \t]*[\r\n]+\s*`)

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Options wires the extractor's collaborators.
type Options struct {
	Clock Clock
	Sink  diagnostics.Sink
	// UnavailableMarkers are substrings that mark a withdrawn listing.
	UnavailableMarkers []string
	// IDParam is the query parameter carrying the record id.
	IDParam string
	Logger  *zap.Logger
}

// Extractor applies Rules to detail pages. It is safe for concurrent use.
type Extractor struct {
	rules   Rules
	clock   Clock
	sink    diagnostics.Sink
	markers []string
	idParam string
	logger  *zap.Logger
}

// New constructs an Extractor, filling unset options with defaults.
func New(rules Rules, opts Options) *Extractor {
	if opts.Clock == nil {
		opts.Clock = wallClock{}
	}
	if opts.Sink == nil {
		opts.Sink = diagnostics.Nop{}
	}
	if opts.IDParam == "" {
		opts.IDParam = "flatshare_id"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Extractor{
		rules:   rules,
		clock:   opts.Clock,
		sink:    opts.Sink,
		markers: opts.UnavailableMarkers,
		idParam: opts.IDParam,
		logger:  opts.Logger.Named("extract"),
	}
}

// Extract builds a Record from doc, fetched from pageURL.
func (e *Extractor) Extract(ctx context.Context, doc *goquery.Document, pageURL string) listing.Record {
	rec := listing.Record{URL: pageURL}
	log := e.logger.With(zap.String("url", pageURL))
	html, err := doc.Html()
	if err != nil {
		log.Debug("render page html", zap.Error(err))
	}

	e.step(log, "id", func() {
		id, err := listing.IDFromURL(pageURL, e.idParam)
		if err != nil {
			id, err = listing.IDFromText(html, e.idParam)
		}
		if err != nil {
			log.Warn("record id not found", zap.Error(err))
			return
		}
		rec.ID = id
		log = log.With(zap.Stringer("record_id", id))
	})

	e.step(log, "available", func() {
		rec.Available = !ContainsAny(html, e.markers)
	})

	e.step(log, "title", func() {
		sel := doc.Find(e.rules.Title).First()
		if sel.Length() == 0 {
			log.Warn("title not found")
			return
		}
		title := strings.TrimSpace(sel.Text())
		rec.Title = &title
	})

	e.step(log, "description", func() {
		sel := doc.Find(e.rules.Description).First()
		if sel.Length() == 0 {
			log.Warn("description not found")
			return
		}
		rec.Description = collapseLines(sel.Text())
	})

	e.step(log, "key_features", func() {
		rec.Key = e.rules.KeyFields(doc)
	})

	e.step(log, "prices", func() {
		rec.Prices = e.rules.RoomPrices(doc)
		if len(rec.Prices) > 0 {
			return
		}
		log.Error("no room or whole-property price found")
		evt := diagnostics.Event{
			RunID:    diagnostics.RunIDFrom(ctx),
			RecordID: rec.ID,
			URL:      pageURL,
			Kind:     diagnostics.KindPriceMissing,
			Reason:   "no room or whole-property price",
			Body:     []byte(html),
			TS:       e.clock.Now(),
		}
		if err := e.sink.Record(ctx, evt); err != nil {
			log.Warn("failed to record diagnostic", zap.Error(err))
		}
	})

	e.step(log, "features", func() {
		rec.Features = e.rules.Features(doc)
	})

	e.step(log, "images", func() {
		rec.MainImage, rec.Images = e.rules.Images(doc)
	})

	e.step(log, "coordinates", func() {
		lat, lng, err := e.rules.Coordinates(doc)
		if err != nil {
			log.Debug("coordinates unavailable", zap.Error(err))
			return
		}
		rec.Latitude, rec.Longitude = &lat, &lng
	})

	rec.ScrapedOn = e.clock.Now()
	return rec
}

// step runs one field rule, turning a panic into a logged degradation.
func (e *Extractor) step(log *zap.Logger, field string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("field extraction failed", zap.String("field", field), zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

// KeyFields maps the key-feature list positionally onto type, area,
// postcode and nearest station.
func (r Rules) KeyFields(doc *goquery.Document) listing.KeyFeatures {
	var kf listing.KeyFeatures
	targets := []*string{&kf.Type, &kf.Area, &kf.Postcode, &kf.NearestStation}
	doc.Find(r.KeyFeatures).EachWithBreak(func(i int, li *goquery.Selection) bool {
		if i >= len(targets) {
			return false
		}
		raw := strings.TrimSpace(li.Text())
		switch i {
		case 2:
			if f := strings.Fields(raw); len(f) > 0 {
				*targets[i] = f[0]
			}
		case 3:
			first, _, _ := strings.Cut(raw, "\n")
			*targets[i] = collapseSpace(first)
		default:
			*targets[i] = collapseSpace(raw)
		}
		return true
	})
	return kf
}

// RoomPrices reads the per-room price list, falling back to the single
// whole-property price.
func (r Rules) RoomPrices(doc *goquery.Document) []listing.RoomPrice {
	var prices []listing.RoomPrice
	doc.Find(r.RoomList).Each(func(_ int, li *goquery.Selection) {
		price, err := r.parseQuote(li.Find(r.RoomPrice).First().Text())
		if err != nil {
			return
		}
		prices = append(prices, listing.RoomPrice{
			Price: price,
			Type:  stripParens(li.Find(r.RoomType).First().Text()),
		})
	})
	if len(prices) > 0 {
		return prices
	}

	heading := doc.Find(r.WholePropertyList).First()
	if heading.Length() == 0 {
		return nil
	}
	price, err := r.parseQuote(heading.Text())
	if err != nil {
		return nil
	}
	return []listing.RoomPrice{{Price: price, Type: listing.WholePropertyType}}
}

// Features zips every term/description pair across all feature lists into a
// map keyed by the normalised term. Values are trimmed but otherwise kept as
// the page renders them.
func (r Rules) Features(doc *goquery.Document) map[string]string {
	out := make(map[string]string)
	doc.Find(r.FeatureLists).Each(func(_ int, dl *goquery.Selection) {
		terms := dl.Find(r.FeatureTerm)
		descs := dl.Find(r.FeatureDesc)
		n := terms.Length()
		if descs.Length() < n {
			n = descs.Length()
		}
		for i := 0; i < n; i++ {
			key := NormalizeKey(terms.Eq(i).Text())
			if key == "" {
				continue
			}
			out[key] = strings.TrimSpace(descs.Eq(i).Text())
		}
	})
	return out
}

// ContainsAny reports whether body contains any of the markers.
func ContainsAny(body string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(body, m) {
			return true
		}
	}
	return false
}

// collapseLines replaces each run of line breaks, and the whitespace around
// it, with a single space.
func collapseLines(s string) string {
	return lineBreaks.ReplaceAllString(strings.TrimSpace(s), " ")
}
