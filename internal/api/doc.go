// Package api hosts the read-only HTTP server over the persisted dataset.
// Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/listings and /v1/listings/{id} for the rows in column order.
//   - GET /v1/markers for geolocated listings, as plotted by the map view.
package api
