package feed

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bilgisen/newsenrich/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"
)

// FetcherConfig tunes the feed HTTP client.
type FetcherConfig struct {
	Timeout       time.Duration
	RetryCount    int
	RetryWaitTime time.Duration
}

type Fetcher struct {
	client *resty.Client
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryWaitTime <= 0 {
		cfg.RetryWaitTime = 2 * time.Second
	}

	return &Fetcher{
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetRetryCount(cfg.RetryCount).
			SetRetryWaitTime(cfg.RetryWaitTime).
			SetRetryMaxWaitTime(10 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= http.StatusInternalServerError
			}),
	}
}

// FetchFeed retrieves an RSS, Atom or JSON feed and converts its items into
// raw entries. Every failure wraps models.ErrFeedUnavailable.
func (f *Fetcher) FetchFeed(ctx context.Context, url string) ([]models.RawEntry, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8").
		Get(url)

	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", models.ErrFeedUnavailable, url, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code %d from %s", models.ErrFeedUnavailable, resp.StatusCode(), url)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", models.ErrFeedUnavailable, url, err)
	}

	entries := make([]models.RawEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, toRawEntry(parsed, item))
	}
	return entries, nil
}

func toRawEntry(feed *gofeed.Feed, item *gofeed.Item) models.RawEntry {
	description := item.Description
	if strings.TrimSpace(description) == "" {
		description = item.Content
	}

	var published time.Time
	switch {
	case item.PublishedParsed != nil:
		published = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		published = item.UpdatedParsed.UTC()
	}

	return models.RawEntry{
		Title:       item.Title,
		Description: description,
		PublishedAt: published,
		Link:        item.Link,
		ImageURL:    imageURL(item),
		SourceName:  feed.Title,
	}
}

// imageURL picks the item image, falling back to the first image enclosure.
func imageURL(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}
