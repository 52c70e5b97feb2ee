package feed

import (
	"context"
	"testing"
	"time"

	"github.com/bilgisen/newsenrich/internal/models"
	"github.com/go-playground/assert/v2"
)

func TestCleanHTML(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "  plain   text\n", "plain text"},
		{"inline tags", "<p>Hello <b>world</b></p>", "Hello world"},
		{"entities", "Tom &amp; Jerry", "Tom & Jerry"},
		{"scripts dropped", "<script>alert(1)</script><p>Visible</p>", "Visible"},
		{"block elements separated", "<p>Hello</p><p>World</p>", "Hello World"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.CleanHTML(tt.input))
		})
	}
}

func TestNormalizeEntry(t *testing.T) {
	p := NewParser()
	published := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	got := p.NormalizeEntry(models.RawEntry{
		Title:       " <em>Breaking</em> news ",
		Description: "<div>Body <a href=\"#\">text</a></div>",
		PublishedAt: published,
		Link:        " https://example.com/a ",
		ImageURL:    " https://example.com/a.png",
		SourceName:  "Wire ",
	})

	assert.Equal(t, "Breaking news", got.Title)
	assert.Equal(t, "Body text", got.Description)
	assert.Equal(t, published, got.PublishedAt)
	assert.Equal(t, "https://example.com/a", got.Link)
	assert.Equal(t, "https://example.com/a.png", got.ImageURL)
	assert.Equal(t, "Wire", got.SourceName)
}

func TestProcessEntriesKeepsOrderAndReportsInvalid(t *testing.T) {
	p := NewParser()
	entries := []models.RawEntry{
		{Title: "first", Link: "https://example.com/1"},
		{Title: "<p></p>", Link: "https://example.com/2"},
		{Title: "third", Link: ""},
		{Title: "fourth", Link: "https://example.com/4"},
	}

	valid, errs := p.ProcessEntries(context.Background(), entries)

	assert.Equal(t, 2, len(errs))
	assert.Equal(t, 2, len(valid))
	assert.Equal(t, "first", valid[0].Title)
	assert.Equal(t, "fourth", valid[1].Title)
}

func TestProcessEntriesStopsOnCancelledContext(t *testing.T) {
	p := NewParser()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	valid, errs := p.ProcessEntries(ctx, []models.RawEntry{{Title: "a", Link: "https://example.com/a"}})

	assert.Equal(t, 0, len(valid))
	assert.Equal(t, context.Canceled, errs[len(errs)-1])
}
