// Package enrich runs background enrichment of feed items.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bilgisen/newsenrich/internal/logger"
	"github.com/bilgisen/newsenrich/internal/models"
	"github.com/bilgisen/newsenrich/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultBatchSize  = 2
	DefaultBatchDelay = 500 * time.Millisecond

	// NoBatchDelay starts each batch as soon as the previous one settles.
	NoBatchDelay time.Duration = -1
)

// Analyzer produces an analysis for an article. It must not fail.
type Analyzer interface {
	Analyze(ctx context.Context, title, content string) models.AnalysisResult
}

// ContentFetcher loads the extended text behind an item's link.
type ContentFetcher interface {
	FetchContent(ctx context.Context, link string) (string, error)
}

// Config tunes a Queue. Zero values select the defaults.
type Config struct {
	BatchSize  int
	BatchDelay time.Duration
}

// Queue drives pending items through the analyzer in small sequential
// batches and writes every result back to the store as soon as it is ready.
type Queue struct {
	store      *store.Store
	analyzer   Analyzer
	content    ContentFetcher
	batchSize  int
	batchDelay time.Duration

	wg  sync.WaitGroup
	log zerolog.Logger
}

func NewQueue(st *store.Store, analyzer Analyzer, content ContentFetcher, cfg Config) *Queue {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	switch {
	case cfg.BatchDelay == 0:
		cfg.BatchDelay = DefaultBatchDelay
	case cfg.BatchDelay < 0:
		cfg.BatchDelay = 0
	}

	return &Queue{
		store:      st,
		analyzer:   analyzer,
		content:    content,
		batchSize:  cfg.BatchSize,
		batchDelay: cfg.BatchDelay,
		log:        logger.Component("enrich"),
	}
}

// Enqueue marks every still-pending id as summarizing before it returns and
// processes the accepted ids in the background. It returns the number of
// accepted ids. Cancelling ctx stops the run after the current batch.
func (q *Queue) Enqueue(ctx context.Context, ids []string) int {
	gen, accepted := q.store.BeginSummarizing(ids)
	if len(accepted) == 0 {
		return 0
	}

	runID := uuid.NewString()
	q.log.Info().
		Str("run_id", runID).
		Uint64("generation", gen).
		Int("requested", len(ids)).
		Int("accepted", len(accepted)).
		Msg("Enrichment run queued")

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.run(ctx, runID, gen, accepted)
	}()

	return len(accepted)
}

// Wait blocks until every run started by this queue has finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) run(ctx context.Context, runID string, gen uint64, ids []string) {
	log := q.log.With().
		Str("run_id", runID).
		Uint64("generation", gen).
		Logger()
	start := time.Now()

	for i := 0; i < len(ids); i += q.batchSize {
		if !q.wait(ctx, i > 0) {
			q.store.Release(gen, ids[i:])
			log.Warn().
				Int("processed", i).
				Int("released", len(ids)-i).
				Msg("Enrichment run cancelled")
			return
		}

		if q.store.Generation() != gen {
			log.Info().
				Int("processed", i).
				Int("skipped", len(ids)-i).
				Msg("Feed session changed, abandoning enrichment run")
			return
		}

		batch := ids[i:min(i+q.batchSize, len(ids))]

		var wg sync.WaitGroup
		for _, id := range batch {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				q.process(ctx, log, gen, id)
			}(id)
		}
		wg.Wait()
	}

	log.Info().
		Int("items", len(ids)).
		Dur("duration", time.Since(start)).
		Msg("Enrichment run finished")
}

// wait waits out the inter-batch delay when delay is set. It reports false
// if ctx is or becomes done.
func (q *Queue) wait(ctx context.Context, delay bool) bool {
	if ctx.Err() != nil {
		return false
	}
	if !delay || q.batchDelay == 0 {
		return true
	}

	timer := time.NewTimer(q.batchDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (q *Queue) process(ctx context.Context, log zerolog.Logger, gen uint64, id string) {
	item, ok := q.store.Get(id)
	if !ok {
		return
	}

	result, err := q.enrich(ctx, log, item)
	if err != nil {
		log.Error().
			Err(err).
			Str("id", id).
			Msg("Enrichment failed, marking item as done")
	}

	// finished work is persisted even when the run is being cancelled
	applied, persistErr := q.store.Complete(context.WithoutCancel(ctx), gen, id, func(n *models.NewsItem) {
		applyResult(n, result, err)
	})
	if persistErr != nil {
		log.Error().
			Err(persistErr).
			Str("id", id).
			Msg("Failed to persist enriched item")
	}
	if !applied {
		log.Debug().
			Str("id", id).
			Msg("Discarded stale enrichment result")
		return
	}

	log.Debug().
		Str("id", id).
		Bool("used_remote", result.UsedRemote).
		Msg("Item enriched")
}

func (q *Queue) enrich(ctx context.Context, log zerolog.Logger, item models.NewsItem) (result models.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enrichment panic: %v", r)
		}
	}()

	content := item.Description
	if q.content != nil && item.Link != "" {
		text, fetchErr := q.content.FetchContent(ctx, item.Link)
		switch {
		case fetchErr != nil:
			log.Debug().
				Err(fetchErr).
				Str("id", item.ID).
				Str("link", item.Link).
				Msg("Using description as analysis input")
		case strings.TrimSpace(text) != "":
			content = text
		}
	}

	return q.analyzer.Analyze(ctx, item.Title, content), nil
}

func applyResult(n *models.NewsItem, result models.AnalysisResult, err error) {
	summary := result.Summary
	if err != nil || strings.TrimSpace(summary) == "" {
		summary = models.SummaryFailed
	}
	n.Summary = &summary

	if err != nil {
		return
	}

	n.ReadingTimeSeconds = result.ReadingTimeSeconds
	if result.UsedRemote {
		sentiment := result.Sentiment
		n.LLMSentiment = &sentiment
		n.LLMKeywords = result.Keywords
		return
	}
	n.Sentiment = result.Sentiment
	n.Keywords = result.Keywords
}
