// Package system provides the wall clock used to stamp scraped records.
package system

import "time"

// Clock implements crawler.Clock and extract.Clock.
type Clock struct {
	loc *time.Location
}

// New returns a clock reporting times in loc. A nil loc means UTC.
func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}
