package scraper

import (
	"context"
	"fmt"
)

// PageFetcher retrieves the HTML of a single search results page.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
	Close() error
}

// FetchError reports a page that could not be retrieved: a transport
// failure or a non-2xx status.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
