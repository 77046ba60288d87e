package crawler

import (
	"errors"
	"fmt"
)

// ErrSearchUnavailable is returned by Engine.Run when the first search page
// cannot be fetched. Nothing else aborts a run.
var ErrSearchUnavailable = errors.New("search endpoint unavailable")

// RedirectError reports a response that was not a plain success: a redirect
// (which the fetcher never follows) or any other non-2xx status.
type RedirectError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *RedirectError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("fetch %s: status %d redirect to %s", e.URL, e.StatusCode, e.Location)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// NetworkError wraps a transport failure such as a timeout or reset.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
