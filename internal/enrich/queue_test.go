package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bilgisen/newsenrich/internal/ai"
	"github.com/bilgisen/newsenrich/internal/cache"
	"github.com/bilgisen/newsenrich/internal/models"
	"github.com/bilgisen/newsenrich/internal/store"
	"github.com/go-playground/assert/v2"
)

// recordingAnalyzer tracks concurrency and the order in which calls start
// and finish.
type recordingAnalyzer struct {
	mu        sync.Mutex
	inFlight  int
	maxFlight int
	starts    []time.Time
	ends      []time.Time
	contents  map[string]string

	delay   time.Duration
	release chan struct{}
	remote  bool
	panicOn string
}

func newRecordingAnalyzer(delay time.Duration) *recordingAnalyzer {
	return &recordingAnalyzer{delay: delay, contents: make(map[string]string)}
}

func (r *recordingAnalyzer) Analyze(ctx context.Context, title, content string) models.AnalysisResult {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.maxFlight {
		r.maxFlight = r.inFlight
	}
	r.starts = append(r.starts, time.Now())
	r.contents[title] = content
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.ends = append(r.ends, time.Now())
		r.mu.Unlock()
	}()

	if r.release != nil {
		<-r.release
	}
	time.Sleep(r.delay)

	if title == r.panicOn {
		panic("analyzer exploded")
	}

	return models.AnalysisResult{
		Summary:            "summary of " + title,
		Sentiment:          models.SentimentNegative,
		Keywords:           []string{"kw-" + title},
		ReadingTimeSeconds: 42,
		UsedRemote:         r.remote,
	}
}

func (r *recordingAnalyzer) started() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.starts)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type stubContent struct {
	texts map[string]string
	err   error
}

func (s *stubContent) FetchContent(ctx context.Context, link string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.texts[link], nil
}

func setup(t *testing.T, n int) (*store.Store, *cache.MemoryStore, []string) {
	t.Helper()

	kv := cache.NewMemoryStore()
	st := store.New(kv, store.Options{})
	st.Activate(context.Background(), "tech")

	var entries []models.RawEntry
	for i := 0; i < n; i++ {
		entries = append(entries, models.RawEntry{
			Title:       fmt.Sprintf("item-%d", i),
			Description: fmt.Sprintf("description %d", i),
			PublishedAt: time.Now().Add(-time.Duration(i) * time.Minute),
			Link:        fmt.Sprintf("https://example.com/%d", i),
		})
	}
	res := st.Merge(entries, false)
	return st, kv, res.Pending
}

func TestEnqueueMarksSummarizingSynchronously(t *testing.T) {
	st, _, ids := setup(t, 5)
	analyzer := newRecordingAnalyzer(0)
	analyzer.release = make(chan struct{})
	q := NewQueue(st, analyzer, nil, Config{BatchSize: 2, BatchDelay: time.Millisecond})

	accepted := q.Enqueue(context.Background(), ids)

	assert.Equal(t, 5, accepted)
	assert.Equal(t, 5, st.Stats().Summarizing)
	assert.Equal(t, 0, st.Stats().Pending)

	close(analyzer.release)
	q.Wait()
	assert.Equal(t, 5, st.Stats().Summarized)
}

func TestEnqueueSkipsItemsAlreadyInFlight(t *testing.T) {
	st, _, ids := setup(t, 3)
	analyzer := newRecordingAnalyzer(0)
	analyzer.release = make(chan struct{})
	q := NewQueue(st, analyzer, nil, Config{BatchSize: 2, BatchDelay: NoBatchDelay})

	first := q.Enqueue(context.Background(), ids[:2])
	second := q.Enqueue(context.Background(), ids)

	assert.Equal(t, 2, first)
	assert.Equal(t, 1, second)

	close(analyzer.release)
	q.Wait()

	assert.Equal(t, 3, len(analyzer.starts))
	assert.Equal(t, 0, q.Enqueue(context.Background(), ids))
}

func TestBatchesAreBoundedAndSequential(t *testing.T) {
	st, _, ids := setup(t, 5)
	analyzer := newRecordingAnalyzer(20 * time.Millisecond)
	delay := 30 * time.Millisecond
	q := NewQueue(st, analyzer, nil, Config{BatchSize: 2, BatchDelay: delay})

	q.Enqueue(context.Background(), ids)
	q.Wait()

	assert.Equal(t, 2, analyzer.maxFlight)
	assert.Equal(t, 5, len(analyzer.starts))

	// batch k+1 starts after every call of batch k ended and the delay passed
	for k := 1; k*2 < len(analyzer.starts); k++ {
		lastEndOfPrev := analyzer.ends[k*2-1]
		nextStart := analyzer.starts[k*2]
		assert.Equal(t, true, nextStart.Sub(lastEndOfPrev) >= delay)
	}
}

func TestResultsAreAppliedAndPersistedPerItem(t *testing.T) {
	st, kv, ids := setup(t, 1)
	analyzer := newRecordingAnalyzer(0)
	analyzer.remote = true
	q := NewQueue(st, analyzer, nil, Config{BatchSize: 2, BatchDelay: NoBatchDelay})

	q.Enqueue(context.Background(), ids)
	q.Wait()

	item, _ := st.Get(ids[0])
	assert.Equal(t, true, item.IsSummarized)
	assert.Equal(t, false, item.IsSummarizing)
	assert.Equal(t, "summary of item-0", *item.Summary)
	assert.Equal(t, models.SentimentNegative, *item.LLMSentiment)
	assert.Equal(t, []string{"kw-item-0"}, item.LLMKeywords)
	assert.Equal(t, 42, item.ReadingTimeSeconds)

	restored := store.New(kv, store.Options{})
	restored.Activate(context.Background(), "tech")
	persisted, ok := restored.Get(ids[0])
	assert.Equal(t, true, ok)
	assert.Equal(t, "summary of item-0", *persisted.Summary)
}

func TestLocalResultFillsBaselineOnly(t *testing.T) {
	st, _, ids := setup(t, 1)
	q := NewQueue(st, newRecordingAnalyzer(0), nil, Config{BatchSize: 2, BatchDelay: NoBatchDelay})

	q.Enqueue(context.Background(), ids)
	q.Wait()

	item, _ := st.Get(ids[0])
	assert.Equal(t, true, item.LLMSentiment == nil)
	assert.Equal(t, 0, len(item.LLMKeywords))
	assert.Equal(t, models.SentimentNegative, item.Sentiment)
	assert.Equal(t, []string{"kw-item-0"}, item.Keywords)
}

func TestExtendedContentIsPreferred(t *testing.T) {
	st, _, ids := setup(t, 2)
	analyzer := newRecordingAnalyzer(0)
	content := &stubContent{texts: map[string]string{
		"https://example.com/0": "full article text",
	}}
	q := NewQueue(st, analyzer, content, Config{BatchSize: 2, BatchDelay: NoBatchDelay})

	q.Enqueue(context.Background(), ids)
	q.Wait()

	assert.Equal(t, "full article text", analyzer.contents["item-0"])
	// empty extended content falls back to the description
	assert.Equal(t, "description 1", analyzer.contents["item-1"])
}

func TestContentFetchErrorFallsBackToDescription(t *testing.T) {
	st, _, ids := setup(t, 1)
	analyzer := newRecordingAnalyzer(0)
	content := &stubContent{err: fmt.Errorf("%w: timeout", models.ErrContentFetchFailed)}
	q := NewQueue(st, analyzer, content, Config{BatchSize: 2, BatchDelay: NoBatchDelay})

	q.Enqueue(context.Background(), ids)
	q.Wait()

	item, _ := st.Get(ids[0])
	assert.Equal(t, "description 0", analyzer.contents["item-0"])
	assert.Equal(t, "summary of item-0", *item.Summary)
}

func TestPanicResolvesToSentinelSummary(t *testing.T) {
	st, _, ids := setup(t, 2)
	analyzer := newRecordingAnalyzer(0)
	analyzer.panicOn = "item-0"
	q := NewQueue(st, analyzer, nil, Config{BatchSize: 2, BatchDelay: NoBatchDelay})

	q.Enqueue(context.Background(), ids)
	q.Wait()

	failed, _ := st.Get(ids[0])
	ok, _ := st.Get(ids[1])
	assert.Equal(t, true, failed.IsSummarized)
	assert.Equal(t, models.SummaryFailed, *failed.Summary)
	assert.Equal(t, "summary of item-1", *ok.Summary)

	// failed items are terminal and never retried
	assert.Equal(t, 0, q.Enqueue(context.Background(), ids))
}

func TestStaleGenerationResultsAreDiscarded(t *testing.T) {
	st, _, ids := setup(t, 4)
	analyzer := newRecordingAnalyzer(0)
	analyzer.release = make(chan struct{})
	q := NewQueue(st, analyzer, nil, Config{BatchSize: 2, BatchDelay: NoBatchDelay})

	q.Enqueue(context.Background(), ids)
	waitFor(t, func() bool { return analyzer.started() == 2 })
	st.Activate(context.Background(), "world")
	close(analyzer.release)
	q.Wait()

	// only the first batch ran; the rest of the run was abandoned
	assert.Equal(t, 2, len(analyzer.starts))
	assert.Equal(t, "world", st.FeedKey())
	assert.Equal(t, 0, st.Stats().Total)
}

func TestCancelReleasesUnstartedItems(t *testing.T) {
	st, _, ids := setup(t, 4)
	analyzer := newRecordingAnalyzer(0)
	analyzer.release = make(chan struct{})
	q := NewQueue(st, analyzer, nil, Config{BatchSize: 2, BatchDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	q.Enqueue(ctx, ids)
	close(analyzer.release)

	// let the first batch finish, then cancel during the inter-batch delay
	waitFor(t, func() bool { return st.Stats().Summarized == 2 })
	cancel()
	q.Wait()

	stats := st.Stats()
	assert.Equal(t, 2, stats.Summarized)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 0, stats.Summarizing)
}

func TestOverlappingRunsAnalyseEachItemOnce(t *testing.T) {
	st, _, ids := setup(t, 6)
	analyzer := newRecordingAnalyzer(time.Millisecond)
	q := NewQueue(st, analyzer, nil, Config{BatchSize: 2, BatchDelay: NoBatchDelay})

	var runs sync.WaitGroup
	for i := 0; i < 3; i++ {
		runs.Add(1)
		go func() {
			defer runs.Done()
			q.Enqueue(context.Background(), ids)
		}()
	}
	runs.Wait()
	q.Wait()

	assert.Equal(t, 6, len(analyzer.starts))
	assert.Equal(t, 6, st.Stats().Summarized)
	for _, item := range st.Items() {
		assert.Equal(t, "summary of "+item.Title, *item.Summary)
	}
}

func TestQueueWithGatewayFallback(t *testing.T) {
	st, _, ids := setup(t, 1)
	gateway := ai.NewGateway(failingRemote{}, time.Second)
	q := NewQueue(st, gateway, nil, Config{BatchSize: 2, BatchDelay: NoBatchDelay})

	q.Enqueue(context.Background(), ids)
	q.Wait()

	item, _ := st.Get(ids[0])
	assert.Equal(t, true, item.IsSummarized)
	assert.Equal(t, "description 0", *item.Summary)
	assert.Equal(t, true, item.LLMSentiment == nil)
}

type failingRemote struct{}

func (failingRemote) Analyze(ctx context.Context, title, content string) (*models.RemoteAnalysis, error) {
	return nil, errors.New("provider down")
}

func TestNewQueueDefaults(t *testing.T) {
	st, _, _ := setup(t, 0)

	q := NewQueue(st, newRecordingAnalyzer(0), nil, Config{})
	assert.Equal(t, DefaultBatchSize, q.batchSize)
	assert.Equal(t, DefaultBatchDelay, q.batchDelay)

	q = NewQueue(st, newRecordingAnalyzer(0), nil, Config{BatchSize: 3, BatchDelay: NoBatchDelay})
	assert.Equal(t, 3, q.batchSize)
	assert.Equal(t, time.Duration(0), q.batchDelay)
}
