package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/dwellist/internal/dataset"
	"github.com/JakeFAU/dwellist/internal/listing"
)

// Discoverer extracts new listing candidates from results pages. It keeps
// per-run state and must not be shared between runs or goroutines.
type Discoverer struct {
	cardSelector   string
	promotedMarker string
	cfg            Config
	logger         *zap.Logger

	dropped map[listing.RecordID]int
	emitted dataset.IDSet
}

// NewDiscoverer returns a Discoverer for one run.
func NewDiscoverer(cfg Config, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		cardSelector:   "article.panel-listing-result",
		promotedMarker: "listing-featured",
		cfg:            cfg,
		logger:         logger.Named("discover"),
		dropped:        make(map[listing.RecordID]int),
		emitted:        make(dataset.IDSet),
	}
}

// Discover returns the cards on doc whose id is not in existing. Promoted
// cards are skipped outright. Across a run at most cfg.Limit candidates are
// emitted; later new cards are counted as OverLimit.
func (d *Discoverer) Discover(doc *goquery.Document, existing dataset.IDSet) DiscoveryResult {
	var res DiscoveryResult
	doc.Find(d.cardSelector).Each(func(_ int, card *goquery.Selection) {
		res.Cards++
		html, _ := goquery.OuterHtml(card)
		if strings.Contains(html, d.promotedMarker) {
			res.Promoted++
			return
		}

		id, ok := d.cardID(card, html)
		if !ok {
			res.Malformed++
			d.logger.Debug("card without listing id")
			return
		}

		if existing.Has(id) {
			d.dropped[id]++
			if d.dropped[id] > 1 {
				res.Anomalies++
				d.logger.Error("listing dropped as already logged more than once",
					zap.Stringer("record_id", id), zap.Int("times", d.dropped[id]))
				return
			}
			res.AlreadyLogged++
			return
		}

		if d.emitted.Has(id) {
			res.Duplicates++
			return
		}
		if d.Remaining() == 0 {
			res.OverLimit++
			return
		}
		d.emitted.Add(id)
		res.Candidates = append(res.Candidates, listing.Candidate{
			ID:        id,
			DetailURL: d.cfg.DetailURL(id.String()),
		})
	})
	return res
}

func (d *Discoverer) cardID(card *goquery.Selection, html string) (listing.RecordID, bool) {
	var (
		id    listing.RecordID
		found bool
	)
	card.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !strings.Contains(href, d.cfg.IDParam+"=") {
			return true
		}
		parsed, err := listing.IDFromURL(href, d.cfg.IDParam)
		if err != nil {
			return true
		}
		id, found = parsed, true
		return false
	})
	if found {
		return id, true
	}
	parsed, err := listing.IDFromText(html, d.cfg.IDParam)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// Remaining reports how many more candidates the run may emit.
func (d *Discoverer) Remaining() int {
	if n := d.cfg.Limit - len(d.emitted); n > 0 {
		return n
	}
	return 0
}
