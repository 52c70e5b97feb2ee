package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/bilgisen/newsenrich/internal/models"
)

// Parser handles cleaning and normalizing feed entries
type Parser struct {
	workers int
}

func NewParser() *Parser {
	return &Parser{workers: 10}
}

// CleanHTML extracts the visible text of an HTML fragment and normalizes
// whitespace.
func (p *Parser) CleanHTML(input string) string {
	if !strings.ContainsAny(input, "<&") {
		return strings.Join(strings.Fields(input), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return strings.Join(strings.Fields(input), " ")
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find("p, br, div, li, h1, h2, h3, h4, h5, h6").AppendHtml(" ")

	return strings.Join(strings.Fields(doc.Text()), " ")
}

// NormalizeEntry cleans the text fields of a single entry
func (p *Parser) NormalizeEntry(entry models.RawEntry) models.RawEntry {
	return models.RawEntry{
		Title:       p.CleanHTML(entry.Title),
		Description: p.CleanHTML(entry.Description),
		PublishedAt: entry.PublishedAt,
		Link:        strings.TrimSpace(entry.Link),
		ImageURL:    strings.TrimSpace(entry.ImageURL),
		SourceName:  strings.TrimSpace(entry.SourceName),
	}
}

// ValidateEntry checks if the entry has the required fields
func (p *Parser) ValidateEntry(entry models.RawEntry) error {
	if entry.Title == "" {
		return fmt.Errorf("missing required field: title")
	}
	if entry.Link == "" {
		return fmt.Errorf("missing required field: link")
	}
	return nil
}

// ProcessEntries concurrently normalizes and validates entries. Invalid
// entries are reported and left out; the feed order of valid ones is kept.
func (p *Parser) ProcessEntries(ctx context.Context, entries []models.RawEntry) ([]models.RawEntry, []error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	normalized := make([]models.RawEntry, len(entries))
	valid := make([]bool, len(entries))
	semaphore := make(chan struct{}, p.workers)

	for i, entry := range entries {
		if !acquire(ctx, semaphore) {
			wg.Wait()
			return collect(normalized, valid), append(errs, ctx.Err())
		}

		i, entry := i, entry
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-semaphore }()

			n := p.NormalizeEntry(entry)
			if err := p.ValidateEntry(n); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("invalid feed entry %d (%q): %w", i, entry.Link, err))
				mu.Unlock()
				return
			}
			normalized[i] = n
			valid[i] = true
		}()
	}

	wg.Wait()
	return collect(normalized, valid), errs
}

func acquire(ctx context.Context, semaphore chan struct{}) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case semaphore <- struct{}{}:
		return true
	}
}

func collect(entries []models.RawEntry, valid []bool) []models.RawEntry {
	out := make([]models.RawEntry, 0, len(entries))
	for i, ok := range valid {
		if ok {
			out = append(out, entries[i])
		}
	}
	return out
}
