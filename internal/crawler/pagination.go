package crawler

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PaginationScanner reads the result count from the first results page.
type PaginationScanner struct {
	// Marker selects the navigation element holding the counts; the total
	// is its CountIndex-th strong element.
	Marker      string
	CountIndex  int
	PageSize    int
	PlatformMax int
}

// NewPaginationScanner returns a scanner for the results page layout.
func NewPaginationScanner(pageSize, platformMax int) PaginationScanner {
	return PaginationScanner{
		Marker:      "p.navcurrent strong",
		CountIndex:  1,
		PageSize:    pageSize,
		PlatformMax: platformMax,
	}
}

// Scan determines the total result count and how many pages to walk for at
// most limit results. A page with no count yields one page.
func (s PaginationScanner) Scan(doc *goquery.Document, limit int) Pagination {
	raw := ""
	if doc != nil {
		raw = strings.TrimSpace(doc.Find(s.Marker).Eq(s.CountIndex).Text())
	}
	total, capped, ok := s.parseCount(raw)
	if !ok {
		return Pagination{Pages: 1}
	}

	want := total
	if limit > 0 && limit < want {
		want = limit
	}
	pages := 1
	if s.PageSize > 0 && want > 0 {
		pages = (want + s.PageSize - 1) / s.PageSize
	}
	return Pagination{Total: total, Pages: pages, Capped: capped}
}

// parseCount accepts "1,234" and the capped form "1000+".
func (s PaginationScanner) parseCount(raw string) (int, bool, bool) {
	if raw == "" {
		return 0, false, false
	}
	capped := strings.HasSuffix(raw, "+")
	digits := strings.TrimSuffix(raw, "+")
	digits = strings.ReplaceAll(digits, ",", "")
	n, err := strconv.Atoi(strings.TrimSpace(digits))
	if err != nil || n < 0 {
		return 0, false, false
	}
	if capped {
		return s.PlatformMax, true, true
	}
	return n, false, true
}
