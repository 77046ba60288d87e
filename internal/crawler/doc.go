// Package crawler implements the discovery run: it scans the search results
// for a page count, walks each results page to find listings not yet in the
// dataset, fetches their detail pages concurrently, and merges the extracted
// records into the persisted dataset after every page.
package crawler
