// Package store holds the authoritative in-memory item set of the active feed
// and keeps the persisted snapshot in sync with it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bilgisen/newsenrich/internal/ai"
	"github.com/bilgisen/newsenrich/internal/cache"
	"github.com/bilgisen/newsenrich/internal/logger"
	"github.com/bilgisen/newsenrich/internal/models"
	"github.com/bilgisen/newsenrich/internal/utils"
	"github.com/rs/zerolog"
)

// DefaultRetention is how long after publication an item stays active.
const DefaultRetention = 24 * time.Hour

// Options tune a Store.
type Options struct {
	Retention time.Duration
	Now       func() time.Time
}

// Stats is a point-in-time view of the active item set.
type Stats struct {
	FeedKey     string `json:"feed_key"`
	Generation  uint64 `json:"generation"`
	Total       int    `json:"total"`
	Pending     int    `json:"pending"`
	Summarizing int    `json:"summarizing"`
	Summarized  int    `json:"summarized"`
}

// MergeResult is the outcome of merging a fetch cycle into the store.
type MergeResult struct {
	Items   []models.NewsItem
	Pending []string
	Added   int
	Updated int
	Expired int
}

// Store is the in-memory item set of the active feed session.
type Store struct {
	mu         sync.RWMutex
	kv         cache.Store
	feedKey    string
	generation uint64
	items      map[string]*models.NewsItem
	order      []string

	// persistMu orders every write to kv: snapshot+Set pairs, and the
	// clear+restore or clear+delete of a session change. It is always taken
	// before mu.
	persistMu sync.Mutex

	subsMu sync.RWMutex
	subs   map[int]func(Stats)
	nextID int

	local     *ai.LocalAnalyzer
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

func New(kv cache.Store, opts Options) *Store {
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Store{
		kv:        kv,
		items:     make(map[string]*models.NewsItem),
		subs:      make(map[int]func(Stats)),
		local:     ai.NewLocalAnalyzer(),
		retention: opts.Retention,
		now:       opts.Now,
		log:       logger.Component("store"),
	}
}

// Activate starts a new feed session: the generation advances, in-memory
// state is replaced by the persisted snapshot for feedKey (if any), and
// results still in flight for the previous session become stale.
func (s *Store) Activate(ctx context.Context, feedKey string) uint64 {
	gen, restored := s.activate(ctx, feedKey)

	s.log.Info().
		Str("feed_key", feedKey).
		Uint64("generation", gen).
		Int("restored_items", restored).
		Msg("Activated feed session")

	s.notify()
	return gen
}

func (s *Store) activate(ctx context.Context, feedKey string) (uint64, int) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.feedKey = feedKey
	s.items = make(map[string]*models.NewsItem)
	s.order = nil
	s.mu.Unlock()

	snapshot, ok := s.Restore(ctx, feedKey)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return gen, 0
	}
	restored := 0
	if ok {
		for i := range snapshot.Items {
			item := snapshot.Items[i]
			if item.ID == "" {
				continue
			}
			if _, dup := s.items[item.ID]; dup {
				continue
			}
			item.IsSummarizing = false
			if item.IsSummarized && item.Summary == nil {
				failed := models.SummaryFailed
				item.Summary = &failed
			}
			s.items[item.ID] = &item
			s.order = append(s.order, item.ID)
			restored++
		}
	}
	return gen, restored
}

// Merge folds freshly fetched entries into the item set. Existing items are
// kept untouched unless forceRefresh is set, in which case their content
// fields are refreshed and their enrichment is preserved. Items outside the
// retention window are dropped.
func (s *Store) Merge(entries []models.RawEntry, forceRefresh bool) MergeResult {
	var res MergeResult

	s.mu.Lock()
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		id := utils.ContentID(e.Title, e.PublishedAt, e.Link)
		if seen[id] {
			continue
		}
		seen[id] = true

		existing, ok := s.items[id]
		switch {
		case ok && !forceRefresh:
			continue
		case ok:
			existing.Title = e.Title
			existing.Description = e.Description
			existing.PublishedAt = e.PublishedAt
			existing.Link = e.Link
			existing.ImageURL = e.ImageURL
			existing.SourceName = e.SourceName
			if !existing.IsSummarized {
				s.applyBaseline(existing)
			}
			res.Updated++
		default:
			item := &models.NewsItem{
				ID:          id,
				Title:       e.Title,
				Description: e.Description,
				PublishedAt: e.PublishedAt,
				Link:        e.Link,
				ImageURL:    e.ImageURL,
				SourceName:  e.SourceName,
			}
			s.applyBaseline(item)
			s.items[id] = item
			s.order = append(s.order, id)
			res.Added++
		}
	}

	res.Expired = s.pruneLocked()
	res.Items = s.sortedLocked()
	for _, item := range res.Items {
		if item.IsPending() {
			res.Pending = append(res.Pending, item.ID)
		}
	}
	s.mu.Unlock()

	s.notify()
	return res
}

func (s *Store) applyBaseline(item *models.NewsItem) {
	base := s.local.Analyze(item.Title, item.Description)
	item.Sentiment = base.Sentiment
	item.Keywords = base.Keywords
	item.ReadingTimeSeconds = base.ReadingTimeSeconds
}

// pruneLocked drops items published before the retention window. Items
// without a publish date are kept.
func (s *Store) pruneLocked() int {
	cutoff := s.now().Add(-s.retention)
	kept := s.order[:0]
	expired := 0
	for _, id := range s.order {
		item := s.items[id]
		if !item.PublishedAt.IsZero() && item.PublishedAt.Before(cutoff) {
			delete(s.items, id)
			expired++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return expired
}

// BeginSummarizing atomically moves every still-pending id to the
// summarizing state and returns the accepted ids together with the current
// generation. Ids that are unknown, in flight or done are skipped.
func (s *Store) BeginSummarizing(ids []string) (uint64, []string) {
	s.mu.Lock()
	gen := s.generation
	var accepted []string
	for _, id := range ids {
		item, ok := s.items[id]
		if !ok || !item.IsPending() {
			continue
		}
		item.IsSummarizing = true
		accepted = append(accepted, id)
	}
	s.mu.Unlock()

	if len(accepted) > 0 {
		s.notify()
	}
	return gen, accepted
}

// Complete applies an enrichment result to the latest version of an item and
// marks it terminal, then persists the item set. Results from an older
// generation, or for items no longer present, are discarded and reported as
// not applied. The returned error is a persistence failure only.
func (s *Store) Complete(ctx context.Context, gen uint64, id string, apply func(item *models.NewsItem)) (bool, error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false, nil
	}
	item, ok := s.items[id]
	if !ok || item.IsSummarized {
		s.mu.Unlock()
		return false, nil
	}

	apply(item)
	item.IsSummarized = true
	item.IsSummarizing = false
	if item.Summary == nil {
		failed := models.SummaryFailed
		item.Summary = &failed
	}
	s.mu.Unlock()

	s.notify()
	return true, s.persist(ctx, gen)
}

// Release returns summarizing items of the given generation to pending.
func (s *Store) Release(gen uint64, ids []string) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	released := 0
	for _, id := range ids {
		if item, ok := s.items[id]; ok && item.IsSummarizing {
			item.IsSummarizing = false
			released++
		}
	}
	s.mu.Unlock()

	if released > 0 {
		s.notify()
	}
}

// Persist writes the current item set to the cache. The transient
// summarizing flag is never written.
func (s *Store) Persist(ctx context.Context) error {
	return s.persist(ctx, 0)
}

// persist writes the snapshot of generation gen, or of the current one when
// gen is 0. A snapshot of a session that has since been replaced or
// invalidated is not written.
func (s *Store) persist(ctx context.Context, gen uint64) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	if gen != 0 && gen != s.generation {
		s.mu.RUnlock()
		return nil
	}
	key := s.feedKey
	snapshot := models.FeedCache{
		Items:     make([]models.NewsItem, 0, len(s.order)),
		Timestamp: s.now().UTC(),
	}
	for _, id := range s.order {
		item := s.items[id].Clone()
		item.IsSummarizing = false
		snapshot.Items = append(snapshot.Items, item)
	}
	s.mu.RUnlock()

	if key == "" {
		return nil
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%w: marshal snapshot: %w", models.ErrPersistFailed, err)
	}

	if err := s.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("%w: %w", models.ErrPersistFailed, err)
	}
	return nil
}

// Restore reads the persisted snapshot for feedKey. A corrupt snapshot is
// deleted and reported as absent.
func (s *Store) Restore(ctx context.Context, feedKey string) (*models.FeedCache, bool) {
	data, err := s.kv.Get(ctx, feedKey)
	if errors.Is(err, cache.ErrMiss) {
		return nil, false
	}
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("feed_key", feedKey).
			Msg("Failed to read cached feed, treating as miss")
		return nil, false
	}

	var snapshot models.FeedCache
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.log.Warn().
			Err(err).
			Str("feed_key", feedKey).
			Msg("Corrupt cached feed, clearing it")
		if delErr := s.kv.Delete(ctx, feedKey); delErr != nil {
			s.log.Error().
				Err(delErr).
				Str("feed_key", feedKey).
				Msg("Failed to clear corrupt cached feed")
		}
		return nil, false
	}

	for i := range snapshot.Items {
		snapshot.Items[i].IsSummarizing = false
	}
	return &snapshot, true
}

// Invalidate drops the active item set and its persisted snapshot.
func (s *Store) Invalidate(ctx context.Context) error {
	err := s.invalidate(ctx, nil)
	s.notify()
	return err
}

// InvalidateAll drops the active item set and every persisted snapshot when
// the backend supports it, otherwise only the active one.
func (s *Store) InvalidateAll(ctx context.Context) error {
	clearer, _ := s.kv.(cache.Clearer)
	err := s.invalidate(ctx, clearer)
	s.notify()
	return err
}

func (s *Store) invalidate(ctx context.Context, clearer cache.Clearer) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	key := s.feedKey
	s.generation++
	s.items = make(map[string]*models.NewsItem)
	s.order = nil
	s.mu.Unlock()

	if clearer != nil {
		if err := clearer.Clear(ctx); err != nil {
			return fmt.Errorf("clear cached feeds: %w", err)
		}
		return nil
	}

	if key == "" {
		return nil
	}
	if err := s.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete cached feed %s: %w", key, err)
	}
	return nil
}

// Items returns copies of the active items in display order.
func (s *Store) Items() []models.NewsItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

func (s *Store) sortedLocked() []models.NewsItem {
	out := make([]models.NewsItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	SortForDisplay(out)
	return out
}

// Get returns a copy of a single item.
func (s *Store) Get(id string) (models.NewsItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return models.NewsItem{}, false
	}
	return item.Clone(), true
}

// Generation returns the current session generation.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// FeedKey returns the key of the active feed, empty before activation.
func (s *Store) FeedKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feedKey
}

// Stats counts items per enrichment state.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked()
}

func (s *Store) statsLocked() Stats {
	st := Stats{
		FeedKey:    s.feedKey,
		Generation: s.generation,
		Total:      len(s.order),
	}
	for _, id := range s.order {
		item := s.items[id]
		switch {
		case item.IsSummarized:
			st.Summarized++
		case item.IsSummarizing:
			st.Summarizing++
		default:
			st.Pending++
		}
	}
	return st
}

// Subscribe registers fn to be called with fresh stats after every state
// change. The returned func removes the subscription.
func (s *Store) Subscribe(fn func(Stats)) func() {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) notify() {
	s.subsMu.RLock()
	if len(s.subs) == 0 {
		s.subsMu.RUnlock()
		return
	}
	subs := make([]func(Stats), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.RUnlock()

	st := s.Stats()
	for _, fn := range subs {
		fn(st)
	}
}

// SortForDisplay orders summarized items first, then newest first within
// each group. The sort is stable.
func SortForDisplay(items []models.NewsItem) {
	slices.SortStableFunc(items, func(a, b models.NewsItem) int {
		if a.IsSummarized != b.IsSummarized {
			if a.IsSummarized {
				return -1
			}
			return 1
		}
		return b.PublishedAt.Compare(a.PublishedAt)
	})
}
