package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/bilgisen/newsenrich/internal/logger"
	"github.com/bilgisen/newsenrich/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// RemoteAnalyzer is a remote analysis provider.
type RemoteAnalyzer interface {
	Analyze(ctx context.Context, title, content string) (*models.RemoteAnalysis, error)
}

// Gateway picks the remote analyzer when one is configured and falls back to
// the local heuristics on any remote failure. It never returns an error.
type Gateway struct {
	remote  RemoteAnalyzer
	local   *LocalAnalyzer
	timeout time.Duration
	check   *validator.Validate
	log     zerolog.Logger
}

// NewGateway builds a gateway. A nil remote means local analysis only.
func NewGateway(remote RemoteAnalyzer, timeout time.Duration) *Gateway {
	return &Gateway{
		remote:  remote,
		local:   NewLocalAnalyzer(),
		timeout: timeout,
		check:   validator.New(),
		log:     logger.Component("gateway"),
	}
}

// HasRemote reports whether a remote provider is configured.
func (g *Gateway) HasRemote() bool {
	return g.remote != nil
}

// Analyze returns the best available analysis of an article.
func (g *Gateway) Analyze(ctx context.Context, title, content string) models.AnalysisResult {
	local := g.local.Analyze(title, content)
	if g.remote == nil {
		return local
	}

	remote, err := g.analyzeRemote(ctx, title, content)
	if err != nil {
		g.log.Warn().
			Err(err).
			Str("title", title).
			Msg("Remote analysis failed, using local analysis")
		return local
	}

	return models.AnalysisResult{
		Summary:            remote.Summary,
		Sentiment:          remote.Sentiment,
		Keywords:           remote.Keywords,
		ReadingTimeSeconds: local.ReadingTimeSeconds,
		UsedRemote:         true,
	}
}

func (g *Gateway) analyzeRemote(ctx context.Context, title, content string) (result *models.RemoteAnalysis, err error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	// a panicking provider must not take the caller down with it
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%w: provider panic: %v", models.ErrProviderError, r)
		}
	}()

	result, err = g.remote.Analyze(ctx, title, content)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: empty result", models.ErrProviderError)
	}
	if err := g.check.Struct(result); err != nil {
		return nil, fmt.Errorf("%w: invalid result: %w", models.ErrProviderError, err)
	}
	return result, nil
}
