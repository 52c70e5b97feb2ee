package feed

import (
	"context"
	"sync"
	"time"

	"github.com/bilgisen/newsenrich/internal/config"
	"github.com/bilgisen/newsenrich/internal/enrich"
	"github.com/bilgisen/newsenrich/internal/logger"
	"github.com/bilgisen/newsenrich/internal/models"
	"github.com/bilgisen/newsenrich/internal/store"
	"github.com/rs/zerolog"
)

// Source fetches the raw entries of a feed.
type Source interface {
	FetchFeed(ctx context.Context, url string) ([]models.RawEntry, error)
}

// LoadResult summarises one load cycle.
type LoadResult struct {
	FeedKey    string        `json:"feed_key"`
	Generation uint64        `json:"generation"`
	Switched   bool          `json:"switched"`
	Fetched    int           `json:"fetched"`
	Invalid    int           `json:"invalid"`
	Added      int           `json:"added"`
	Updated    int           `json:"updated"`
	Expired    int           `json:"expired"`
	Queued     int           `json:"queued"`
	Duration   time.Duration `json:"duration"`
}

// Processor runs load cycles against the item store and owns the enrichment
// queue of the active feed session.
type Processor struct {
	source   Source
	parser   *Parser
	store    *store.Store
	analyzer enrich.Analyzer
	content  enrich.ContentFetcher
	queueCfg enrich.Config

	// mu serialises load cycles and invalidation
	mu sync.Mutex

	sessionMu sync.Mutex
	active    config.Feed
	queue     *enrich.Queue
	queues    []*enrich.Queue

	// runs outlive the request that started them
	runCtx     context.Context
	cancelRuns context.CancelFunc

	log zerolog.Logger
}

func NewProcessor(source Source, st *store.Store, analyzer enrich.Analyzer, content enrich.ContentFetcher, queueCfg enrich.Config) *Processor {
	runCtx, cancel := context.WithCancel(context.Background())

	return &Processor{
		source:     source,
		parser:     NewParser(),
		store:      st,
		analyzer:   analyzer,
		content:    content,
		queueCfg:   queueCfg,
		runCtx:     runCtx,
		cancelRuns: cancel,
		log:        logger.Component("processor"),
	}
}

// Load fetches feed, merges it into the store and queues every pending item
// for enrichment. Switching to a different feed starts a new session with its
// own queue; results of the previous session are discarded. When the fetch
// fails the active session is left as it was and no items of feed are loaded.
func (p *Processor) Load(ctx context.Context, feed config.Feed, forceRefresh bool) (*LoadResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	res := &LoadResult{FeedKey: feed.Key}

	log := p.log.With().
		Str("feed_key", feed.Key).
		Str("url", feed.URL).
		Bool("force_refresh", forceRefresh).
		Logger()
	log.Info().Msg("Starting to load feed")

	entries, err := p.source.FetchFeed(ctx, feed.URL)
	if err != nil {
		log.Error().
			Err(err).
			Msg("Error fetching feed")
		return nil, err
	}
	res.Fetched = len(entries)

	// the session only moves once the new feed is known to be reachable
	p.sessionMu.Lock()
	if p.queue == nil || p.store.FeedKey() != feed.Key {
		p.store.Activate(ctx, feed.Key)
		p.queue = enrich.NewQueue(p.store, p.analyzer, p.content, p.queueCfg)
		p.queues = append(p.queues, p.queue)
		p.active = feed
		res.Switched = true
	}
	queue := p.queue
	p.sessionMu.Unlock()

	valid, errs := p.parser.ProcessEntries(ctx, entries)
	if len(errs) > 0 {
		log.Warn().
			Errs("validation_errors", errs).
			Msg("Encountered validation errors while processing feed entries")
	}
	res.Invalid = len(entries) - len(valid)

	merged := p.store.Merge(valid, forceRefresh)
	res.Added = merged.Added
	res.Updated = merged.Updated
	res.Expired = merged.Expired
	res.Generation = p.store.Generation()

	if err := p.store.Persist(ctx); err != nil {
		log.Error().
			Err(err).
			Msg("Failed to persist merged feed")
	}

	res.Queued = queue.Enqueue(p.runCtx, merged.Pending)
	res.Duration = time.Since(start)

	log.Info().
		Int("fetched", res.Fetched).
		Int("added", res.Added).
		Int("updated", res.Updated).
		Int("expired", res.Expired).
		Int("queued", res.Queued).
		Dur("duration", res.Duration).
		Msg("Finished loading feed")

	return res, nil
}

// Active returns the feed of the current session.
func (p *Processor) Active() (config.Feed, bool) {
	p.sessionMu.Lock()
	defer p.sessionMu.Unlock()
	return p.active, p.queue != nil
}

// Invalidate drops the active feed's items and cached snapshot. The next Load
// starts from an empty set.
func (p *Processor) Invalidate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Invalidate(ctx); err != nil {
		return err
	}
	p.log.Info().
		Str("feed_key", p.store.FeedKey()).
		Msg("Invalidated feed cache")
	return nil
}

// InvalidateAll drops every cached feed snapshot the backend can enumerate.
func (p *Processor) InvalidateAll(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.InvalidateAll(ctx); err != nil {
		return err
	}
	p.log.Info().Msg("Invalidated all feed caches")
	return nil
}

// Shutdown stops background enrichment and waits for running batches to
// settle. Items that never started are returned to pending.
func (p *Processor) Shutdown() {
	p.cancelRuns()
	p.Wait()
}

// Wait blocks until every queued enrichment run has finished.
func (p *Processor) Wait() {
	p.sessionMu.Lock()
	queues := p.queues
	p.sessionMu.Unlock()

	for _, q := range queues {
		q.Wait()
	}
}
