// Package collyfetcher implements fetcher.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/formpick/picklist-crawler/internal/fetcher"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher performs single-URL GETs through a Colly collector. The base
// collector holds the pooled transport; each Fetch clones it so callbacks
// never leak between requests.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	// ParseHTTPErrorResponse routes every response with a body through
	// OnResponse; without it colly reports any status >= 203 as an error,
	// which would turn valid 204/206 responses into fetch failures. Status
	// classification happens in Fetch instead.
	c := colly.NewCollector(colly.Async(false), colly.ParseHTTPErrorResponse())
	c.IgnoreRobotsTxt = true
	// Retries hit the same URL again, so the visited-URL cache must be off.
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET. Any non-2xx status or transport failure
// is returned as a *fetcher.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (fetcher.Response, error) {
	var (
		result   fetcher.Response
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			fetchErr = &fetcher.FetchError{
				URL:        url,
				StatusCode: r.StatusCode,
				Err:        fmt.Errorf("unexpected status %d", r.StatusCode),
			}
			return
		}
		result = fetcher.Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = &fetcher.FetchError{URL: url, StatusCode: status, Err: err}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fetcher.Response{}, &fetcher.FetchError{URL: url, Err: ctx.Err()}
	case err := <-done:
		if fetchErr != nil {
			return fetcher.Response{}, fetchErr
		}
		if err != nil {
			return fetcher.Response{}, &fetcher.FetchError{URL: url, Err: err}
		}
		return result, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
