package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/dwellist/internal/listing"
)

// BatchFetcher fetches and extracts detail pages concurrently.
type BatchFetcher struct {
	fetcher   Fetcher
	extractor Extractor
	limiter   Limiter
	workers   int
	markers   [][]byte
	logger    *zap.Logger
}

// BatchOption customises a BatchFetcher.
type BatchOption func(*BatchFetcher)

// WithLimiter throttles each detail request.
func WithLimiter(l Limiter) BatchOption {
	return func(b *BatchFetcher) { b.limiter = l }
}

// WithBatchLogger sets the logger.
func WithBatchLogger(l *zap.Logger) BatchOption {
	return func(b *BatchFetcher) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBatchFetcher builds a fetcher running at most workers requests at once.
// workers <= 0 fires every request of a batch at once.
func NewBatchFetcher(f Fetcher, ex Extractor, workers int, unavailableMarkers []string, opts ...BatchOption) *BatchFetcher {
	markers := make([][]byte, 0, len(unavailableMarkers))
	for _, m := range unavailableMarkers {
		if m != "" {
			markers = append(markers, []byte(m))
		}
	}
	b := &BatchFetcher{
		fetcher:   f,
		extractor: ex,
		workers:   workers,
		markers:   markers,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.Named("batch")
	return b
}

type outcome struct {
	record listing.Record
	kind   string
}

// FetchAll processes every candidate and returns once all tasks finished.
// A failing task only loses its own record. Records keep candidate order.
func (b *BatchFetcher) FetchAll(ctx context.Context, candidates []listing.Candidate) BatchResult {
	outcomes := make([]outcome, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	if b.workers > 0 {
		g.SetLimit(b.workers)
	}
	for i, c := range candidates {
		g.Go(func() error {
			outcomes[i] = b.process(gctx, c)
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors

	var res BatchResult
	for _, o := range outcomes {
		switch o.kind {
		case OutcomeCollected:
			res.Collected++
			res.Records = append(res.Records, o.record)
		case OutcomeUnavailable:
			res.Unavailable++
		default:
			res.Failed++
		}
	}
	return res
}

func (b *BatchFetcher) process(ctx context.Context, c listing.Candidate) (out outcome) {
	log := b.logger.With(zap.Stringer("record_id", c.ID), zap.String("url", c.DetailURL))
	defer func() {
		if r := recover(); r != nil {
			log.Error("detail task panicked", zap.String("panic", fmt.Sprint(r)))
			out = outcome{kind: OutcomeFailed}
		}
	}()

	if b.limiter != nil {
		if err := b.limiter.Wait(ctx, c.DetailURL); err != nil {
			log.Warn("rate limiter wait failed", zap.Error(err))
			return outcome{kind: OutcomeFailed}
		}
	}

	page, err := b.fetcher.Fetch(ctx, c.DetailURL)
	if err != nil {
		logFetchError(log, err)
		return outcome{kind: OutcomeFailed}
	}
	if b.unavailable(page.Body) {
		log.Info("listing no longer available")
		return outcome{kind: OutcomeUnavailable}
	}
	if page.Doc == nil {
		log.Warn("detail page has no document")
		return outcome{kind: OutcomeFailed}
	}

	rec := b.extractor.Extract(ctx, page.Doc, c.DetailURL)
	if rec.ID == 0 {
		rec.ID = c.ID
	}
	return outcome{record: rec, kind: OutcomeCollected}
}

func (b *BatchFetcher) unavailable(body []byte) bool {
	for _, m := range b.markers {
		if bytes.Contains(body, m) {
			return true
		}
	}
	return false
}

func logFetchError(log *zap.Logger, err error) {
	var redirect *RedirectError
	var network *NetworkError
	switch {
	case errors.As(err, &redirect):
		log.Warn("unexpected redirect or status",
			zap.Int("status", redirect.StatusCode), zap.String("location", redirect.Location))
	case errors.As(err, &network):
		log.Warn("network failure", zap.Error(network.Err))
	default:
		log.Warn("fetch failed", zap.Error(err))
	}
}
