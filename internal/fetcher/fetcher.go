// Package fetcher defines the HTTP fetch contract shared by the listing
// walker and the artifact downloader.
package fetcher

import (
	"context"
	"fmt"
	"time"
)

// Response is the result of a successful fetch (any 2xx status).
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Fetcher issues a single HTTP GET and returns the raw body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Response, error)
}

// FetchError reports a transport failure or a non-2xx status for a URL.
// StatusCode is zero when the request never produced a response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
