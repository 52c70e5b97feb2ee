package models

import "time"

// Sentiment is the coarse polarity label attached to an item.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// SummaryFailed is stored as the summary of an item whose enrichment could not
// complete. The item is still terminal.
const SummaryFailed = "Could not summarize content."

// NewsItem represents one ingested entry together with its enrichment state
type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"published_at"`
	Link        string    `json:"link"`
	ImageURL    string    `json:"image_url,omitempty"`
	SourceName  string    `json:"source_name,omitempty"`

	Sentiment          Sentiment `json:"sentiment"`
	Keywords           []string  `json:"keywords"`
	ReadingTimeSeconds int       `json:"reading_time_seconds"`

	Summary      *string    `json:"summary"`
	LLMSentiment *Sentiment `json:"llm_sentiment,omitempty"`
	LLMKeywords  []string   `json:"llm_keywords,omitempty"`

	IsSummarized bool `json:"is_summarized"`
	// IsSummarizing lives for the process lifetime only and is never persisted.
	IsSummarizing bool `json:"-"`
}

// IsPending reports whether the item still waits for enrichment.
func (n *NewsItem) IsPending() bool {
	return !n.IsSummarized && !n.IsSummarizing
}

// Clone returns a deep copy so callers can hand items out without sharing
// slices or pointers with the store.
func (n *NewsItem) Clone() NewsItem {
	c := *n
	if n.Keywords != nil {
		c.Keywords = append([]string(nil), n.Keywords...)
	}
	if n.LLMKeywords != nil {
		c.LLMKeywords = append([]string(nil), n.LLMKeywords...)
	}
	if n.Summary != nil {
		s := *n.Summary
		c.Summary = &s
	}
	if n.LLMSentiment != nil {
		s := *n.LLMSentiment
		c.LLMSentiment = &s
	}
	return c
}

// FeedCache is the persisted snapshot of a feed's items.
type FeedCache struct {
	Items     []NewsItem `json:"items"`
	Timestamp time.Time  `json:"timestamp"`
}
