package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestFetcher() *Fetcher {
	return NewFetcher(&http.Client{Timeout: 5 * time.Second}, NewParser(), "Lemmy RSSBot/test")
}

func TestFetcherNotModified(t *testing.T) {
	var gotETag, gotIMS string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotETag = r.Header.Get("If-None-Match")
		gotIMS = r.Header.Get("If-Modified-Since")
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	result, err := newTestFetcher().Run(context.Background(), server.URL, `"etag-1"`, "Mon, 01 Jan 2024 10:00:00 GMT")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !result.NotModified {
		t.Error("Expected NotModified result")
	}
	if gotETag != `"etag-1"` {
		t.Errorf("Expected If-None-Match header, got %q", gotETag)
	}
	if gotIMS != "Mon, 01 Jan 2024 10:00:00 GMT" {
		t.Errorf("Expected If-Modified-Since header, got %q", gotIMS)
	}
}

func TestFetcherSuccessWithValidators(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"etag-2"`)
		w.Header().Set("Last-Modified", "Tue, 02 Jan 2024 10:00:00 GMT")
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	result, err := newTestFetcher().Run(context.Background(), server.URL, "", "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.NotModified {
		t.Error("Expected a parsed result")
	}
	if len(result.Entries) != 3 {
		t.Errorf("Expected 3 entries, got %d", len(result.Entries))
	}
	if result.ETag != `"etag-2"` || result.LastModified != "Tue, 02 Jan 2024 10:00:00 GMT" {
		t.Errorf("Validators not captured: %q / %q", result.ETag, result.LastModified)
	}
	if !result.HasValidators {
		t.Error("Expected HasValidators true")
	}
}

func TestFetcherNoValidators(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	result, err := newTestFetcher().Run(context.Background(), server.URL, "", "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.HasValidators {
		t.Error("Expected HasValidators false when the server sends none")
	}
}

func TestFetcherErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusNotFound, ErrorPermanent},
		{http.StatusGone, ErrorPermanent},
		{http.StatusInternalServerError, ErrorTransient},
		{http.StatusTooManyRequests, ErrorTransient},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		_, err := newTestFetcher().Run(context.Background(), server.URL, "", "")
		server.Close()

		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			t.Fatalf("Status %d: expected FetchError, got %v", tt.status, err)
		}
		if fetchErr.Kind != tt.kind {
			t.Errorf("Status %d: expected kind %d, got %d", tt.status, tt.kind, fetchErr.Kind)
		}
		// resp.Status already includes the code; it must not appear twice.
		wantStatus := fmt.Sprintf("%d ", tt.status)
		if n := strings.Count(err.Error(), wantStatus); n != 1 {
			t.Errorf("Status %d: code should appear once in %q, found %d times", tt.status, err.Error(), n)
		}
	}
}

func TestFetcherTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	fetcher := NewFetcher(&http.Client{Timeout: 100 * time.Millisecond}, NewParser(), "Lemmy RSSBot/test")

	_, err := fetcher.Run(context.Background(), server.URL, "", "")

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected FetchError on timeout, got %v", err)
	}
	if fetchErr.Kind != ErrorTransient {
		t.Errorf("Timeout should be transient, got kind %d", fetchErr.Kind)
	}
}

func TestFetcherParseFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a feed at all"))
	}))
	defer server.Close()

	_, err := newTestFetcher().Run(context.Background(), server.URL, "", "")

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected FetchError on parse failure, got %v", err)
	}
}
