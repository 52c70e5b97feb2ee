package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bilgisen/newsenrich/internal/models"
	"github.com/go-playground/assert/v2"
)

const rssBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Tech Daily</title>
  <link>https://example.com</link>
  <item>
    <title>Go 1.25 released</title>
    <description><![CDATA[<p>The <b>Go</b> team shipped a release.</p>]]></description>
    <link>https://example.com/go</link>
    <pubDate>Sun, 01 Mar 2026 10:00:00 GMT</pubDate>
    <enclosure url="https://example.com/go.png" type="image/png" length="100"/>
  </item>
  <item>
    <title>Undated item</title>
    <description>No date here</description>
    <link>https://example.com/undated</link>
  </item>
</channel>
</rss>`

const atomBody = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Source</title>
  <id>urn:example</id>
  <updated>2026-03-01T09:00:00Z</updated>
  <entry>
    <title>Atom entry</title>
    <id>urn:example:1</id>
    <link href="https://example.com/atom"/>
    <updated>2026-03-01T09:00:00Z</updated>
    <summary>Short atom summary</summary>
  </entry>
</feed>`

func feedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestFetcher(retries int) *Fetcher {
	return NewFetcher(FetcherConfig{
		Timeout:       2 * time.Second,
		RetryCount:    retries,
		RetryWaitTime: time.Millisecond,
	})
}

func TestFetchFeedRSS(t *testing.T) {
	srv := feedServer(t, http.StatusOK, rssBody)

	entries, err := newTestFetcher(0).FetchFeed(context.Background(), srv.URL)

	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(entries))

	first := entries[0]
	assert.Equal(t, "Go 1.25 released", first.Title)
	assert.Equal(t, "https://example.com/go", first.Link)
	assert.Equal(t, "https://example.com/go.png", first.ImageURL)
	assert.Equal(t, "Tech Daily", first.SourceName)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), first.PublishedAt)
	assert.Equal(t, "<p>The <b>Go</b> team shipped a release.</p>", first.Description)

	assert.Equal(t, true, entries[1].PublishedAt.IsZero())
	assert.Equal(t, "", entries[1].ImageURL)
}

func TestFetchFeedAtomUsesUpdatedDate(t *testing.T) {
	srv := feedServer(t, http.StatusOK, atomBody)

	entries, err := newTestFetcher(0).FetchFeed(context.Background(), srv.URL)

	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(entries))
	assert.Equal(t, "Atom Source", entries[0].SourceName)
	assert.Equal(t, "Short atom summary", entries[0].Description)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), entries[0].PublishedAt)
}

func TestFetchFeedFailuresAreUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, "missing"},
		{"server error", http.StatusInternalServerError, "boom"},
		{"not a feed", http.StatusOK, "this is not xml or json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := feedServer(t, tt.status, tt.body)

			entries, err := newTestFetcher(0).FetchFeed(context.Background(), srv.URL)

			assert.Equal(t, 0, len(entries))
			assert.Equal(t, true, errors.Is(err, models.ErrFeedUnavailable))
		})
	}
}

func TestFetchFeedUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestFetcher(0).FetchFeed(context.Background(), url)

	assert.Equal(t, true, errors.Is(err, models.ErrFeedUnavailable))
}

func TestFetchFeedRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(rssBody))
	}))
	defer srv.Close()

	entries, err := newTestFetcher(2).FetchFeed(context.Background(), srv.URL)

	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(entries))
	assert.Equal(t, int32(2), calls.Load())
}
