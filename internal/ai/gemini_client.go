package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/bilgisen/newsenrich/internal/models"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiConfig configures the remote analyzer.
type GeminiConfig struct {
	APIKey        string
	Model         string
	BaseURL       string
	Timeout       time.Duration
	RPM           int
	Burst         int
	MaxInputChars int
}

// GeminiClient is the remote analyzer backed by the Gemini generateContent API.
type GeminiClient struct {
	client        *resty.Client
	apiKey        string
	model         string
	baseURL       string
	limiter       *rate.Limiter
	maxInputChars int
	post          *PostProcessor
}

var _ RemoteAnalyzer = (*GeminiClient)(nil)

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	limit := rate.Inf
	if cfg.RPM > 0 {
		limit = rate.Limit(float64(cfg.RPM) / 60.0)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &GeminiClient{
		client:        resty.New().SetTimeout(timeout),
		apiKey:        cfg.APIKey,
		model:         cfg.Model,
		baseURL:       baseURL,
		limiter:       rate.NewLimiter(limit, burst),
		maxInputChars: cfg.MaxInputChars,
		post:          NewPostProcessor(DefaultKeywordLimit),
	}
}

// Analyze asks the model for a summary, sentiment and keywords. Every failure
// wraps models.ErrProviderError.
func (g *GeminiClient) Analyze(ctx context.Context, title, content string) (*models.RemoteAnalysis, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: limiter wait: %w", models.ErrProviderError, err)
	}

	prompt := BuildAnalysisPrompt(title, truncateInput(content, g.maxInputChars), DefaultKeywordLimit)

	response, err := g.callGeminiAPI(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: error calling Gemini API: %w", models.ErrProviderError, err)
	}

	analysis, err := g.post.Process(response)
	if err != nil {
		return nil, fmt.Errorf("%w: error parsing Gemini response: %w", models.ErrProviderError, err)
	}

	return analysis, nil
}

func (g *GeminiClient) callGeminiAPI(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/%s:generateContent", g.baseURL, g.model)

	req := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{
				Text: prompt,
			}},
		}},
		GenerationConfig: &geminiGenerationConfig{ResponseMimeType: "application/json"},
	}

	var resp geminiResponse
	httpResp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", g.apiKey).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(url)

	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s", resp.Error.Message)
	}

	if httpResp.IsError() {
		return "", fmt.Errorf("unexpected status code %d", httpResp.StatusCode())
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}
