package models

import "time"

// RawEntry is a feed entry as produced by the feed source, before identity
// assignment and enrichment.
type RawEntry struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"published_at"`
	Link        string    `json:"link"`
	ImageURL    string    `json:"image_url,omitempty"`
	SourceName  string    `json:"source_name,omitempty"`
}
