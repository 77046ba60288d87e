package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/dwellist/internal/dataset"
	"github.com/JakeFAU/dwellist/internal/listing"
)

type listingsResponse struct {
	Count   int        `json:"count"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

type markerPrice struct {
	Price int    `json:"price"`
	Type  string `json:"type,omitempty"`
}

type marker struct {
	ID        string        `json:"id"`
	URL       string        `json:"url"`
	Title     string        `json:"title,omitempty"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Prices    []markerPrice `json:"prices"`
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, bool) {
	d, err := s.store.Load(r.Context())
	if err != nil {
		s.logger.Error("load dataset", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "dataset unavailable")
		return nil, false
	}
	return d, true
}

// listListings returns the rows as value arrays aligned to columns. An
// optional limit query parameter truncates the rows.
func (s *Server) listListings(w http.ResponseWriter, r *http.Request) {
	limit := -1
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	d, ok := s.load(w, r)
	if !ok {
		return
	}
	columns := d.Columns()
	rows := d.Rows()
	if limit >= 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	resp := listingsResponse{Count: d.Len(), Columns: columns, Rows: make([][]string, 0, len(rows))}
	for _, row := range rows {
		resp.Rows = append(resp.Rows, dataset.Values(row, columns))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getListing(w http.ResponseWriter, r *http.Request) {
	id, err := listing.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid listing id")
		return
	}
	d, ok := s.load(w, r)
	if !ok {
		return
	}
	for _, row := range d.Rows() {
		if rowID, err := row.ID(); err == nil && rowID == id {
			s.writeJSON(w, http.StatusOK, row)
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "listing not found")
}

// listMarkers returns every listing with usable coordinates.
func (s *Server) listMarkers(w http.ResponseWriter, r *http.Request) {
	d, ok := s.load(w, r)
	if !ok {
		return
	}
	markers := make([]marker, 0, d.Len())
	for _, row := range d.Rows() {
		if m, ok := markerOf(row); ok {
			markers = append(markers, m)
		}
	}
	s.writeJSON(w, http.StatusOK, markers)
}

func markerOf(row dataset.Row) (marker, bool) {
	lat, err := strconv.ParseFloat(row[listing.ColumnLatitude], 64)
	if err != nil {
		return marker{}, false
	}
	lng, err := strconv.ParseFloat(row[listing.ColumnLongitude], 64)
	if err != nil {
		return marker{}, false
	}
	m := marker{
		ID:        row[listing.ColumnID],
		URL:       row[listing.ColumnURL],
		Title:     row[listing.ColumnTitle],
		Latitude:  lat,
		Longitude: lng,
		Prices:    []markerPrice{},
	}
	for n := 1; ; n++ {
		raw, ok := row[listing.PriceColumn(n)]
		if !ok {
			break
		}
		price, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		m.Prices = append(m.Prices, markerPrice{Price: price, Type: row[listing.PriceTypeColumn(n)]})
	}
	return m, true
}
