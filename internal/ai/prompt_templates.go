package ai

import (
	"fmt"
	"strings"
)

// PromptTemplates contains the prompt templates sent to the remote analyzer
var PromptTemplates = struct {
	Analysis string
}{
	Analysis: `You are a news analyst. Read the article below and analyse it.

1. Summary: 2-3 plain sentences, neutral tone, no markdown
2. Sentiment: exactly one of "positive", "negative" or "neutral"
3. Keywords: up to %d short keywords, most relevant first

Respond with a single valid JSON object and nothing else:
{
  "summary": "string",
  "sentiment": "positive | negative | neutral",
  "keywords": ["string"]
}

Title: %s

Content: %s`,
}

// BuildAnalysisPrompt creates the analysis prompt for an article.
func BuildAnalysisPrompt(title, content string, keywordLimit int) string {
	return fmt.Sprintf(PromptTemplates.Analysis, keywordLimit, escapeForPrompt(title), escapeForPrompt(content))
}

// escapeForPrompt escapes special characters for use in prompts
func escapeForPrompt(s string) string {
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}

// truncateInput cuts content to at most max runes so prompts stay within the
// provider's token budget.
func truncateInput(content string, max int) string {
	if max <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max])
}
