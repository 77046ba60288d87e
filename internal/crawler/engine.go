package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/dwellist/internal/dataset"
	"github.com/JakeFAU/dwellist/internal/diagnostics"
)

// Page scan results used in logs and metrics.
const (
	PageScanned = "scanned"
	PageFailed  = "failed"
)

// EngineDeps wires the engine's collaborators. Fetcher, Extractor and Store
// are required.
type EngineDeps struct {
	Fetcher   Fetcher
	Extractor Extractor
	Store     Store
	Limiter   Limiter
	Recorder  Recorder
	Clock     Clock
	IDs       IDGenerator
	Logger    *zap.Logger
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Engine runs discovery passes over the search results.
type Engine struct {
	cfg      Config
	fetcher  Fetcher
	extract  Extractor
	store    Store
	limiter  Limiter
	recorder Recorder
	clock    Clock
	ids      IDGenerator
	logger   *zap.Logger
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config, deps EngineDeps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid crawler config: %w", err)
	}
	if deps.Fetcher == nil || deps.Extractor == nil || deps.Store == nil {
		return nil, errors.New("fetcher, extractor and store are required")
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		fetcher:  deps.Fetcher,
		extract:  deps.Extractor,
		store:    deps.Store,
		limiter:  deps.Limiter,
		recorder: deps.Recorder,
		clock:    deps.Clock,
		ids:      deps.IDs,
		logger:   deps.Logger,
	}, nil
}

// Run performs one discovery pass. Only a failure to fetch the first search
// page (ErrSearchUnavailable), to load the dataset, or to save it after the
// last page is returned as an error, along with cancellation of ctx; the
// summary then describes the pages completed before it. Everything else
// degrades and is logged.
func (e *Engine) Run(ctx context.Context) (summary RunSummary, err error) {
	start := e.clock.Now()
	summary.RunID = e.newRunID()
	ctx = diagnostics.WithRunID(ctx, summary.RunID)
	log := e.logger.With(zap.String("run_id", summary.RunID))
	defer func() {
		summary.Duration = e.clock.Now().Sub(start)
		e.recorder.RunDuration(summary.Duration)
	}()

	current, err := e.store.Load(ctx)
	if err != nil {
		return summary, fmt.Errorf("load dataset: %w", err)
	}
	if current == nil {
		current = dataset.New()
	}
	summary.Rows = current.Len()
	log.Info("dataset loaded", zap.Int("rows", current.Len()))

	first, err := e.fetcher.Fetch(ctx, e.cfg.SearchURL)
	if err != nil {
		e.recorder.PageScanned(PageFailed)
		log.Error("search page unavailable", zap.String("url", e.cfg.SearchURL), zap.Error(err))
		return summary, fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	}

	pagination := NewPaginationScanner(e.cfg.PageSize, e.cfg.PlatformMax).Scan(first.Doc, e.cfg.Limit)
	summary.Total = pagination.Total
	log.Info("search results",
		zap.Int("total", pagination.Total),
		zap.Int("pages", pagination.Pages),
		zap.Bool("capped", pagination.Capped))

	discoverer := NewDiscoverer(e.cfg, log)
	batch := NewBatchFetcher(e.fetcher, e.extract, e.cfg.Workers, e.cfg.UnavailableMarkers,
		WithLimiter(e.limiter), WithBatchLogger(log))

	var saveErr error
	for n := 0; n < pagination.Pages; n++ {
		if err := ctx.Err(); err != nil {
			log.Warn("run canceled", zap.Int("page", n), zap.Error(err))
			break
		}
		page := first
		if n > 0 {
			if page, err = e.fetchResultsPage(ctx, n); err != nil {
				e.recorder.PageScanned(PageFailed)
				log.Warn("skipping results page", zap.Int("page", n), zap.Error(err))
				continue
			}
		}
		if page.Doc == nil {
			e.recorder.PageScanned(PageFailed)
			continue
		}
		e.recorder.PageScanned(PageScanned)
		summary.Pages++

		found := discoverer.Discover(page.Doc, current.IDs())
		fetched := batch.FetchAll(ctx, found.Candidates)
		merged, stats := dataset.Merge(current, fetched.Records)
		current = merged

		saveErr = e.store.Save(ctx, current)
		if saveErr != nil {
			log.Error("save dataset", zap.Int("page", n), zap.Error(saveErr))
		}

		summary.New += stats.Added
		summary.AlreadyLogged += found.AlreadyLogged
		summary.Anomalies += found.Anomalies
		summary.Unavailable += fetched.Unavailable
		summary.Failed += fetched.Failed
		summary.Rows = current.Len()

		e.recorder.Candidates("new", len(found.Candidates))
		e.recorder.Candidates("already_logged", found.AlreadyLogged)
		e.recorder.Candidates("promoted", found.Promoted)
		e.recorder.Candidates("anomaly", found.Anomalies)
		e.recorder.Candidates("duplicate", found.Duplicates)
		e.recorder.Candidates("malformed", found.Malformed)
		e.recorder.Candidates("over_limit", found.OverLimit)
		e.recorder.DetailFetched(OutcomeCollected, fetched.Collected)
		e.recorder.DetailFetched(OutcomeUnavailable, fetched.Unavailable)
		e.recorder.DetailFetched(OutcomeFailed, fetched.Failed)
		e.recorder.DatasetRows(current.Len())

		log.Info("page summary",
			zap.Int("page", n+1),
			zap.Int("of", pagination.Pages),
			zap.Int("new", stats.Added),
			zap.Int("already_logged", found.AlreadyLogged),
			zap.Int("unavailable", fetched.Unavailable),
			zap.Int("total", current.Len()))

		if discoverer.Remaining() == 0 {
			log.Info("listing limit reached", zap.Int("limit", e.cfg.Limit), zap.Int("page", n+1))
			break
		}
	}

	if saveErr != nil {
		return summary, fmt.Errorf("save dataset: %w", saveErr)
	}
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("run canceled: %w", err)
	}
	log.Info("run complete",
		zap.Int("new", summary.New),
		zap.Int("already_logged", summary.AlreadyLogged),
		zap.Int("unavailable", summary.Unavailable),
		zap.Int("failed", summary.Failed),
		zap.Int("rows", summary.Rows))
	return summary, nil
}

func (e *Engine) fetchResultsPage(ctx context.Context, n int) (Page, error) {
	pageURL, err := e.cfg.PageURL(n)
	if err != nil {
		return Page{}, err
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, pageURL); err != nil {
			return Page{}, fmt.Errorf("rate limiter: %w", err)
		}
	}
	return e.fetcher.Fetch(ctx, pageURL)
}

func (e *Engine) newRunID() string {
	if e.ids == nil {
		return ""
	}
	id, err := e.ids.NewID()
	if err != nil {
		e.logger.Warn("generate run id", zap.Error(err))
		return ""
	}
	return id
}
