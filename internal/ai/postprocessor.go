package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bilgisen/newsenrich/internal/models"
	"github.com/go-playground/validator/v10"
)

// PostProcessor turns raw model output into a validated RemoteAnalysis.
type PostProcessor struct {
	validate     *validator.Validate
	keywordLimit int
}

func NewPostProcessor(keywordLimit int) *PostProcessor {
	return &PostProcessor{
		validate:     validator.New(),
		keywordLimit: keywordLimit,
	}
}

// Process decodes, normalises and validates a model response. Any decoding or
// validation problem is an error; nothing is guessed.
func (p *PostProcessor) Process(response string) (*models.RemoteAnalysis, error) {
	cleaned := cleanJSONResponse(response)

	var result models.RemoteAnalysis
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	result.Summary = strings.Join(strings.Fields(result.Summary), " ")
	result.Sentiment = models.Sentiment(strings.ToLower(strings.TrimSpace(string(result.Sentiment))))
	result.Keywords = p.cleanKeywords(result.Keywords)

	if err := p.validate.Struct(&result); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}

	return &result, nil
}

// cleanKeywords lowercases, trims, de-duplicates and bounds the keyword list.
func (p *PostProcessor) cleanKeywords(keywords []string) []string {
	if keywords == nil {
		return nil
	}

	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
		if p.keywordLimit > 0 && len(out) == p.keywordLimit {
			break
		}
	}
	return out
}

// cleanJSONResponse strips code fences and any prose around the JSON object.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
