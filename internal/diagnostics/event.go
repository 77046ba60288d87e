// Package diagnostics defines the events emitted when extraction cannot make
// sense of a page, and the Sink that persists them for later inspection.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/dwellist/internal/listing"
)

// Kind names the failure that produced an Event.
type Kind string

// Supported diagnostic kinds.
const (
	KindPriceMissing    Kind = "PRICE_MISSING"
	KindExtractPanic    Kind = "EXTRACT_PANIC"
	KindUnexpectedCount Kind = "UNEXPECTED_COUNT"
)

// Event captures one diagnostic observation about a fetched page.
type Event struct {
	// RunID correlates the event with the crawl run's logs.
	RunID string
	// RecordID is the listing the page belongs to; zero for search pages.
	RecordID listing.RecordID
	// URL is the page that was being processed.
	URL string
	Kind Kind
	// Reason is a short human-readable explanation.
	Reason string
	// Body is the raw page content.
	Body []byte
	TS   time.Time
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.Kind == "" {
		return errors.New("kind is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	return nil
}

// ObjectName returns the artifact name used by sinks that persist bodies.
func (e Event) ObjectName() string {
	if e.RecordID > 0 {
		return fmt.Sprintf("room_%s.html", e.RecordID)
	}
	return fmt.Sprintf("%s_%s.html", e.Kind, e.TS.UTC().Format("20060102T150405.000000000"))
}

// Sink consumes diagnostic events. Implementations may be called from
// concurrent fetch workers.
type Sink interface {
	Record(ctx context.Context, evt Event) error
}

// Nop discards every event.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(context.Context, Event) error { return nil }

// Multi fans an event out to several sinks and joins their errors.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(ctx context.Context, evt Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type runIDKey struct{}

// WithRunID attaches the crawl run id to ctx so sinks and emitters deep in
// the pipeline can tag their events.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFrom returns the run id stored by WithRunID, or "".
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
