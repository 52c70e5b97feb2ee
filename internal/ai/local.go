package ai

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bilgisen/newsenrich/internal/models"
)

const (
	// DefaultKeywordLimit bounds the keyword list attached to an item.
	DefaultKeywordLimit = 5

	wordsPerMinute    = 200
	summarySentences  = 3
	summaryPrefixRune = 200
)

var (
	positiveWords = []string{
		"good", "great", "excellent", "positive", "success", "successful", "win", "wins",
		"gain", "gains", "growth", "improve", "improved", "boost", "breakthrough", "record",
		"happy", "benefit", "strong", "rise", "rises", "surge", "hope", "celebrate", "best",
	}
	negativeWords = []string{
		"bad", "terrible", "awful", "negative", "failure", "fail", "fails", "loss", "losses",
		"decline", "crisis", "disaster", "crash", "drop", "drops", "fall", "falls", "weak",
		"war", "death", "dead", "attack", "fear", "threat", "worst",
	}

	stopWords = toSet([]string{
		"the", "and", "for", "are", "but", "not", "you", "all", "any", "can", "had", "her",
		"was", "one", "our", "out", "has", "have", "his", "how", "its", "may", "new", "now",
		"old", "see", "two", "who", "did", "get", "him", "let", "say", "she", "too", "use",
		"that", "with", "this", "from", "they", "will", "would", "there", "their", "what",
		"about", "which", "when", "were", "been", "into", "than", "then", "them", "these",
		"those", "some", "could", "other", "after", "also", "more", "most", "over", "such",
		"only", "just", "said", "says", "very", "where", "while", "your", "being", "because",
	})

	positiveRe    = wordListRegexp(positiveWords)
	negativeRe    = wordListRegexp(negativeWords)
	punctuationRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	sentenceRe    = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

func wordListRegexp(words []string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Sentiment classifies text by counting lexicon hits. Ties are neutral.
func Sentiment(text string) models.Sentiment {
	pos := len(positiveRe.FindAllStringIndex(text, -1))
	neg := len(negativeRe.FindAllStringIndex(text, -1))

	switch {
	case pos > neg:
		return models.SentimentPositive
	case neg > pos:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// Keywords returns up to limit tokens ordered by descending frequency, ties
// broken by first occurrence.
func Keywords(text string, limit int) []string {
	if limit <= 0 {
		return []string{}
	}

	cleaned := punctuationRe.ReplaceAllString(strings.ToLower(text), "")

	counts := make(map[string]int)
	var order []string
	for _, token := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(token) <= 2 {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		if counts[token] == 0 {
			order = append(order, token)
		}
		counts[token]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > limit {
		order = order[:limit]
	}
	if order == nil {
		return []string{}
	}
	return order
}

// ReadingTimeSeconds estimates reading time at 200 words per minute.
func ReadingTimeSeconds(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) / wordsPerMinute * 60))
}

// Summarize takes the leading sentences of text, or a truncated prefix when the
// text has no sentence punctuation.
func Summarize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}

	sentences := sentenceRe.FindAllString(text, summarySentences)
	if len(sentences) == 0 {
		return truncateRunes(text, summaryPrefixRune)
	}

	parts := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "..."
}

// LocalAnalyzer is the always-available heuristic analyzer.
type LocalAnalyzer struct {
	keywordLimit int
}

func NewLocalAnalyzer() *LocalAnalyzer {
	return &LocalAnalyzer{keywordLimit: DefaultKeywordLimit}
}

// Analyze builds a full result from the heuristics. When content is blank the
// title is analysed instead.
func (l *LocalAnalyzer) Analyze(title, content string) models.AnalysisResult {
	text := content
	if strings.TrimSpace(text) == "" {
		text = title
	}

	return models.AnalysisResult{
		Summary:            Summarize(text),
		Sentiment:          Sentiment(title + " " + text),
		Keywords:           Keywords(title+" "+text, l.keywordLimit),
		ReadingTimeSeconds: ReadingTimeSeconds(text),
		UsedRemote:         false,
	}
}
