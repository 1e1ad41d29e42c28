// Package upstream fetches remote calendar feeds for the proxy. It owns the
// only I/O and the only cross-request state in the whole pipeline: a small
// HTTP cache (ETag / Last-Modified revalidation with body fallback) and a
// circuit breaker that stops hammering a broken upstream. The document
// engine itself stays stateless.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// ErrUpstream wraps every failure to obtain a feed body, so callers can map
// the whole class to one gateway-style error response.
var ErrUpstream = errors.New("upstream fetch failed")

const (
	defaultTimeout = 15 * time.Second
	userAgent      = "icalmask/1.0"
)

// Fetcher retrieves feed bodies over HTTP.
type Fetcher struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

// cacheEntry remembers the validators and body of the last successful fetch
// for one URL.
type cacheEntry struct {
	etag         string
	lastModified string
	body         []byte
	fetchedAt    time.Time
}

// fetchResult is what one HTTP round trip produced.
type fetchResult struct {
	notModified  bool
	body         []byte
	etag         string
	lastModified string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithLogger sets the fetcher's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: defaultTimeout},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:  make(map[string]*cacheEntry),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "upstream",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn("upstream circuit breaker state change",
				"from", from.String(),
				"to", to.String())
		},
	})
	return f
}

// Fetch returns the current body of the feed at rawURL. A revalidated or
// failed fetch falls back to the cached body when one exists; only when
// there is nothing cached does an upstream failure surface as an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	cached := f.cachedEntry(rawURL)

	res, err := f.breaker.Execute(func() (any, error) {
		return f.fetchOnce(ctx, rawURL, cached)
	})
	if err != nil {
		if cached != nil {
			f.logger.Warn("using cached feed body after fetch failure",
				"url", redactURL(rawURL),
				"age", time.Since(cached.fetchedAt),
				"error", err)
			return cached.body, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, redactURL(rawURL), err)
	}

	result := res.(*fetchResult)
	if result.notModified {
		if cached == nil {
			// 304 without anything to revalidate; the server is confused.
			return nil, fmt.Errorf("%w: %s: 304 with no cached body", ErrUpstream, redactURL(rawURL))
		}
		f.logger.Debug("feed not modified", "url", redactURL(rawURL))
		return cached.body, nil
	}

	f.storeEntry(rawURL, result)
	f.logger.Debug("feed fetched",
		"url", redactURL(rawURL),
		"bytes", len(result.body))
	return result.body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string, cached *cacheEntry) (*fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if cached != nil {
		if cached.etag != "" {
			req.Header.Set("If-None-Match", cached.etag)
		}
		if cached.lastModified != "" {
			req.Header.Set("If-Modified-Since", cached.lastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &fetchResult{notModified: true}, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return &fetchResult{
			body:         body,
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
		}, nil
	default:
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
}

func (f *Fetcher) cachedEntry(rawURL string) *cacheEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache[rawURL]
}

func (f *Fetcher) storeEntry(rawURL string, res *fetchResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[rawURL] = &cacheEntry{
		etag:         res.etag,
		lastModified: res.lastModified,
		body:         res.body,
		fetchedAt:    time.Now(),
	}
}

// redactURL strips path and query from a feed URL before logging. Feed URLs
// routinely embed capability tokens.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "(unparseable url)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
