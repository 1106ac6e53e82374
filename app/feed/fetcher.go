package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

type ErrorKind int

const (
	// ErrorTransient covers network failures, timeouts, and 5xx
	// responses. Retried at the next due cycle without touching the
	// polling interval.
	ErrorTransient ErrorKind = iota
	// ErrorPermanent covers 404/410: the feed is likely gone and needs
	// operator attention. The feed stays scheduled unless disabled.
	ErrorPermanent
)

type FetchError struct {
	Kind ErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher performs conditional HTTP fetches of feed URLs and parses the
// result. A 304 short-circuits before any parsing happens.
type Fetcher struct {
	client    *http.Client
	parser    *Parser
	userAgent string
}

func NewFetcher(client *http.Client, parser *Parser, userAgent string) *Fetcher {
	return &Fetcher{
		client:    client,
		parser:    parser,
		userAgent: userAgent,
	}
}

func (f *Fetcher) Run(ctx context.Context, url, etag, lastModified string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, &FetchError{Kind: ErrorPermanent, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", f.userAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: ErrorTransient, Err: fmt.Errorf("failed to fetch feed: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &FetchResult{NotModified: true}, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, &FetchError{Kind: ErrorPermanent, Err: fmt.Errorf("HTTP error: %s", resp.Status)}
	case resp.StatusCode != http.StatusOK:
		return nil, &FetchError{Kind: ErrorTransient, Err: fmt.Errorf("HTTP error: %s", resp.Status)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: ErrorTransient, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	metadata, entries, err := f.parser.Run(data)
	if err != nil {
		return nil, &FetchError{Kind: ErrorTransient, Err: err}
	}

	result := &FetchResult{
		Metadata:     metadata,
		Entries:      entries,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	result.HasValidators = result.ETag != "" || result.LastModified != ""

	return result, nil
}
