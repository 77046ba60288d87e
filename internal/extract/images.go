package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Images returns the main image and the gallery links. When the page has no
// main image nothing is returned, gallery included.
func (r Rules) Images(doc *goquery.Document) (string, []string) {
	src, ok := doc.Find(r.MainImage).First().Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return "", nil
	}
	var gallery []string
	doc.Find(r.GalleryLinks).Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && strings.TrimSpace(href) != "" {
			gallery = append(gallery, normalizeImageURL(href))
		}
	})
	return normalizeImageURL(src), gallery
}

// normalizeImageURL adds the https scheme to protocol-relative links.
func normalizeImageURL(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "https:") || strings.HasPrefix(u, "http:") {
		return u
	}
	return "https:" + u
}
