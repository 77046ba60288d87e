package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var errNoLocation = errors.New("no location data in page scripts")

// Coordinates finds the page-data script and reads latitude and longitude
// from the brace fragment following the location keyword.
func (r Rules) Coordinates(doc *goquery.Document) (float64, float64, error) {
	var (
		lat, lng float64
		err      = errNoLocation
	)
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(text, r.ScriptMarker) {
			return true
		}
		idx := strings.Index(text, r.LocationKeyword)
		if idx < 0 {
			return true
		}
		end := idx + r.LocationWindow
		if end > len(text) {
			end = len(text)
		}
		lat, lng, err = parseLocationFragment(text[idx:end])
		return false
	})
	return lat, lng, err
}

// parseLocationFragment reads a flat `{"k": v, ...}` fragment by string
// splitting. Named latitude/longitude keys win; otherwise the first two
// numeric values are taken in order.
func parseLocationFragment(window string) (float64, float64, error) {
	open := strings.IndexByte(window, '{')
	if open < 0 {
		return 0, 0, fmt.Errorf("no opening brace in %q", window)
	}
	rest := window[open+1:]
	closeIdx := strings.IndexByte(rest, '}')
	if closeIdx < 0 {
		return 0, 0, fmt.Errorf("no closing brace in %q", window)
	}

	named := make(map[string]float64)
	var ordered []float64
	for _, pair := range strings.Split(rest[:closeIdx], ",") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.ToLower(unquote(kv[0]))
		val, err := strconv.ParseFloat(unquote(kv[1]), 64)
		if err != nil {
			continue
		}
		named[key] = val
		ordered = append(ordered, val)
	}

	lat, latOK := lookup(named, "latitude", "lat")
	lng, lngOK := lookup(named, "longitude", "lng", "lon")
	if latOK && lngOK {
		return lat, lng, nil
	}
	if len(ordered) >= 2 {
		return ordered[0], ordered[1], nil
	}
	return 0, 0, fmt.Errorf("fewer than two numeric values in %q", rest[:closeIdx])
}

func lookup(m map[string]float64, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return 0, false
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
