// Package listing defines the records produced by the crawl pipeline: the
// numeric listing identifier, the discovery candidate, and the extracted
// Record together with its flattened column representation.
package listing

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RecordID uniquely identifies one listing. It is carried in the listing URL
// query string and is the dataset's primary key.
type RecordID int64

// String renders the id the way it appears in URLs and in the dataset.
func (id RecordID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseRecordID parses a decimal record id.
func ParseRecordID(raw string) (RecordID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty record id")
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse record id %q: %w", raw, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("record id %d must be positive", n)
	}
	return RecordID(n), nil
}

// IDFromURL extracts the record id stored under param in rawURL. When the URL
// cannot be parsed (card markup often carries HTML-escaped or relative links)
// it falls back to scanning the raw text for "param=<digits>".
func IDFromURL(rawURL, param string) (RecordID, error) {
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil {
		if v := u.Query().Get(param); v != "" {
			return ParseRecordID(v)
		}
	}
	return IDFromText(rawURL, param)
}

// IDFromText scans arbitrary text for the first "param=<digits>" occurrence.
func IDFromText(text, param string) (RecordID, error) {
	marker := param + "="
	idx := strings.Index(text, marker)
	if idx < 0 {
		return 0, fmt.Errorf("no %s parameter found", param)
	}
	rest := text[idx+len(marker):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	return ParseRecordID(rest[:end])
}

// Candidate is a listing found on a results page that has not been fetched yet.
type Candidate struct {
	ID        RecordID
	DetailURL string
}

// KeyFeatures holds the four positional entries of the key-features list.
type KeyFeatures struct {
	Type           string
	Area           string
	Postcode       string
	NearestStation string
}

// RoomPrice is one monthly-equivalent price paired with its room type.
type RoomPrice struct {
	Price int
	Type  string
}

// WholePropertyType labels the single price emitted for whole-property lets.
const WholePropertyType = "Whole Property"

// DateLayout is the scrape date stamp format (DD-MM-YYYY).
const DateLayout = "02-01-2006"

// Record is the structured result of extracting one listing detail page.
// Records are built once by the extractor and not modified afterwards.
type Record struct {
	ID          RecordID
	URL         string
	Title       *string
	Description string
	Available   bool
	Key         KeyFeatures
	Prices      []RoomPrice
	Latitude    *float64
	Longitude   *float64
	Features    map[string]string
	MainImage   string
	Images      []string
	ScrapedOn   time.Time
}

// Column names shared between the extractor, the dataset and the stores.
const (
	ColumnID             = "id"
	ColumnURL            = "url"
	ColumnTitle          = "title"
	ColumnDescription    = "description"
	ColumnAvailable      = "available"
	ColumnType           = "type"
	ColumnArea           = "area"
	ColumnPostcode       = "postcode"
	ColumnNearestStation = "nearest_station"
	ColumnLatitude       = "latitude"
	ColumnLongitude      = "longitude"
	ColumnDateScraped    = "date_scraped"
	ColumnMainImage      = "main_image"
)

// PriceColumn returns the column holding the n-th (1-indexed) room price.
func PriceColumn(n int) string { return fmt.Sprintf("room_%d_price", n) }

// PriceTypeColumn returns the column holding the n-th (1-indexed) room type.
func PriceTypeColumn(n int) string { return fmt.Sprintf("room_%d_type", n) }

// ImageColumn returns the column holding the n-th (1-indexed) gallery image.
func ImageColumn(n int) string { return fmt.Sprintf("image_%d", n) }

// Fields flattens the record into column/value pairs. Absent optional values
// are omitted so they render as empty cells. Detail-page features override the
// descriptive columns, so a site "Available" row replaces the boolean flag;
// identity, price, location, image and date columns are always authoritative.
func (r Record) Fields() map[string]string {
	out := make(map[string]string, 16+len(r.Features)+2*len(r.Prices)+len(r.Images))
	if r.Title != nil {
		out[ColumnTitle] = *r.Title
	}
	out[ColumnDescription] = r.Description
	out[ColumnAvailable] = strconv.FormatBool(r.Available)
	out[ColumnType] = r.Key.Type
	out[ColumnArea] = r.Key.Area
	out[ColumnPostcode] = r.Key.Postcode
	out[ColumnNearestStation] = r.Key.NearestStation
	for k, v := range r.Features {
		out[k] = v
	}
	out[ColumnID] = r.ID.String()
	out[ColumnURL] = r.URL
	for i, p := range r.Prices {
		out[PriceColumn(i+1)] = strconv.Itoa(p.Price)
		out[PriceTypeColumn(i+1)] = p.Type
	}
	if r.Latitude != nil && r.Longitude != nil {
		out[ColumnLatitude] = strconv.FormatFloat(*r.Latitude, 'f', -1, 64)
		out[ColumnLongitude] = strconv.FormatFloat(*r.Longitude, 'f', -1, 64)
	}
	if r.MainImage != "" {
		out[ColumnMainImage] = r.MainImage
		for i, img := range r.Images {
			out[ImageColumn(i+1)] = img
		}
	}
	if !r.ScrapedOn.IsZero() {
		out[ColumnDateScraped] = r.ScrapedOn.Format(DateLayout)
	}
	return out
}
