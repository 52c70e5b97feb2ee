package feed

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bilgisen/newsenrich/internal/models"
	"github.com/go-resty/resty/v2"
	readability "github.com/go-shiori/go-readability"
)

// ContentFetcher downloads an article page and extracts its readable text.
type ContentFetcher struct {
	client *resty.Client
}

func NewContentFetcher(timeout time.Duration) *ContentFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ContentFetcher{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "text/html,application/xhtml+xml"),
	}
}

// FetchContent returns the article text behind link. Every failure wraps
// models.ErrContentFetchFailed.
func (c *ContentFetcher) FetchContent(ctx context.Context, link string) (string, error) {
	pageURL, err := url.Parse(link)
	if err != nil || pageURL.Host == "" {
		return "", fmt.Errorf("%w: invalid link %q", models.ErrContentFetchFailed, link)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		return "", fmt.Errorf("%w: fetch %s: %w", models.ErrContentFetchFailed, link, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status code %d from %s", models.ErrContentFetchFailed, resp.StatusCode(), link)
	}

	article, err := readability.FromReader(bytes.NewReader(resp.Body()), pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: extract %s: %w", models.ErrContentFetchFailed, link, err)
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if text == "" {
		return "", fmt.Errorf("%w: no readable content at %s", models.ErrContentFetchFailed, link)
	}
	return text, nil
}
