package generator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/dailycase/internal/domain"
	"github.com/ashureev/dailycase/internal/gemini"
	"github.com/ashureev/dailycase/internal/recovery"
	"github.com/ashureev/dailycase/internal/retry"
	"github.com/ashureev/dailycase/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validResponse = `{"title":"Checkout drop","problem":"Conversion fell 12% overnight.","hints":["Segment by device"],"keyMetrics":["conversion rate"],"tools":["SQL"],"teachingPoint":"Segment before you conclude."}`

// 2025-03-10 is 68 days after the epoch, so day index 69.
var fixedNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

type reply struct {
	text string
	err  error
}

// scriptedCompleter returns replies in order and repeats the last one.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies []reply
	calls   int
	prompts []string
	opts    []gemini.Options
	gate    chan struct{}
}

func (c *scriptedCompleter) Complete(_ context.Context, _, prompt string, opts gemini.Options) (string, error) {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.prompts = append(c.prompts, prompt)
	c.opts = append(c.opts, opts)
	i := c.calls - 1
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	return c.replies[i].text, c.replies[i].err
}

func (c *scriptedCompleter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newTestService(c Completer) *Service {
	return NewService(c,
		WithPolicy(retry.Policy{MaxAttempts: 3, Backoff: retry.Fixed(time.Millisecond)}),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func TestObtainGeneratesAndCaches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := store.NewMemory()
	kv := store.Scope(mem, "anon_a")
	c := &scriptedCompleter{replies: []reply{{text: validResponse}}}
	svc := newTestService(c)

	ch, err := svc.Obtain(ctx, kv, 0, "key")
	require.NoError(t, err)
	assert.Equal(t, "Checkout drop", ch.Title)
	assert.Equal(t, 69, ch.DayIndex)
	assert.Equal(t, "challenge:2025-03-10", ch.CacheKey)
	assert.NotEmpty(t, ch.Category)
	assert.Equal(t, 1, c.Calls())
	assert.True(t, c.opts[0].JSON)
	assert.Equal(t, 1, mem.Writes())

	again, err := svc.Obtain(ctx, kv, 0, "key")
	require.NoError(t, err)
	assert.Equal(t, ch, again)
	assert.Equal(t, 1, c.Calls(), "cache hit must not call the model")
	assert.Equal(t, 1, mem.Writes())
}

func TestObtainOffsetUsesDayKey(t *testing.T) {
	t.Parallel()
	c := &scriptedCompleter{replies: []reply{{text: validResponse}}}
	svc := newTestService(c)

	ch, err := svc.Obtain(context.Background(), store.Scope(store.NewMemory(), "anon_a"), -2, "key")
	require.NoError(t, err)
	assert.Equal(t, 67, ch.DayIndex)
	assert.Equal(t, "challenge:day:67", ch.CacheKey)
}

func TestObtainRetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	c := &scriptedCompleter{replies: []reply{
		{err: &gemini.ServiceError{Status: 429, Message: "quota exceeded"}},
		{text: "Sorry, I cannot help with that."},
		{text: validResponse},
	}}
	svc := newTestService(c)

	ch, err := svc.Obtain(context.Background(), store.Scope(mem, "anon_a"), 0, "key")
	require.NoError(t, err)
	assert.Equal(t, "Checkout drop", ch.Title)
	assert.Equal(t, 3, c.Calls())
	assert.Equal(t, 1, mem.Writes())
}

func TestObtainExhaustsAttempts(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	c := &scriptedCompleter{replies: []reply{{err: &gemini.ServiceError{Status: 503, Message: "model overloaded"}}}}
	svc := newTestService(c)

	ch, err := svc.Obtain(context.Background(), store.Scope(mem, "anon_a"), 0, "key")
	require.Error(t, err)
	assert.Nil(t, ch)

	var failed *GenerationFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 3, failed.Attempts)
	assert.Equal(t, "challenge:2025-03-10", failed.CacheKey)
	assert.Contains(t, failed.Message(), "model overloaded")

	var svcErr *gemini.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, 503, svcErr.Status)

	assert.Equal(t, 3, c.Calls())
	assert.Zero(t, mem.Writes())
}

func TestObtainExhaustsOnMalformedOutput(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	c := &scriptedCompleter{replies: []reply{{text: `{"title":"Only a title"}`}}}
	svc := newTestService(c)

	_, err := svc.Obtain(context.Background(), store.Scope(mem, "anon_a"), 0, "key")
	var malformed *recovery.MalformedResponse
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, recovery.ReasonMissingFields, malformed.Reason)
	assert.Zero(t, mem.Writes())
}

func TestObtainRecomputesMetadataOnCacheHit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := store.NewMemory()
	kv := store.Scope(mem, "anon_a")

	stale := domain.Challenge{
		Content:    domain.Content{Title: "Stored", Problem: "p", Hints: []string{"h"}, TeachingPoint: "t"},
		Category:   "Retired Category",
		Difficulty: domain.Advanced,
		DayIndex:   1,
		CacheKey:   "challenge:old",
	}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "challenge:2025-03-10", string(data)))

	c := &scriptedCompleter{replies: []reply{{text: validResponse}}}
	svc := newTestService(c)
	ch, err := svc.Obtain(ctx, kv, 0, "key")
	require.NoError(t, err)

	a := svc.catalog.Assign(fixedNow, 0)
	assert.Equal(t, "Stored", ch.Title)
	assert.Equal(t, a.Category, ch.Category)
	assert.Equal(t, a.Difficulty, ch.Difficulty)
	assert.Equal(t, 69, ch.DayIndex)
	assert.Equal(t, "challenge:2025-03-10", ch.CacheKey)
	assert.Zero(t, c.Calls())
}

func TestObtainTreatsUnreadableCacheAsMiss(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := store.Scope(store.NewMemory(), "anon_a")
	require.NoError(t, kv.Set(ctx, "challenge:2025-03-10", "{not json"))

	c := &scriptedCompleter{replies: []reply{{text: validResponse}}}
	ch, err := newTestService(c).Obtain(ctx, kv, 0, "key")
	require.NoError(t, err)
	assert.Equal(t, "Checkout drop", ch.Title)
	assert.Equal(t, 1, c.Calls())
}

func TestObtainNamespacesAreIsolated(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	c := &scriptedCompleter{replies: []reply{{text: validResponse}}}
	svc := newTestService(c)

	_, err := svc.Obtain(context.Background(), store.Scope(mem, "anon_a"), 0, "key")
	require.NoError(t, err)
	_, err = svc.Obtain(context.Background(), store.Scope(mem, "anon_b"), 0, "key")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Calls())
}

func TestConcurrentObtainSharesOneGeneration(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	kv := store.Scope(mem, "anon_a")
	c := &scriptedCompleter{replies: []reply{{text: validResponse}}, gate: make(chan struct{})}
	svc := newTestService(c)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Obtain(context.Background(), kv, 0, "key")
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(c.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, c.Calls())
	assert.Equal(t, 1, mem.Writes())
}

func TestObtainSurvivesCallerCancellation(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	kv := store.Scope(mem, "anon_a")
	c := &scriptedCompleter{
		replies: []reply{{err: errors.New("connection reset")}, {text: validResponse}},
	}
	svc := newTestService(c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch, err := svc.Obtain(ctx, kv, 0, "key")
	require.NoError(t, err)
	assert.Equal(t, "Checkout drop", ch.Title)
	assert.Equal(t, 1, mem.Writes())
}

func TestObtainWithEventsReportsAttempts(t *testing.T) {
	t.Parallel()
	c := &scriptedCompleter{replies: []reply{{text: "no json here"}, {text: validResponse}}}
	svc := newTestService(c)
	kv := store.Scope(store.NewMemory(), "anon_a")

	var types []EventType
	_, err := svc.ObtainWithEvents(context.Background(), kv, 0, "key", func(e Event) {
		types = append(types, e.Type)
	})
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventAttemptStarted, EventAttemptFailed, EventAttemptStarted, EventGenerated}, types)

	types = nil
	_, err = svc.ObtainWithEvents(context.Background(), kv, 0, "key", func(e Event) {
		types = append(types, e.Type)
	})
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventCacheHit}, types)
}

func testChallenge() *domain.Challenge {
	return &domain.Challenge{
		Content: domain.Content{
			Title:         "Checkout drop",
			Problem:       "Conversion fell.",
			Hints:         []string{"Segment"},
			TeachingPoint: "Segment first.",
		},
		Category:   "Funnel Analysis",
		Difficulty: domain.Intermediate,
		DayIndex:   69,
		CacheKey:   "challenge:2025-03-10",
	}
}

func TestFeedback(t *testing.T) {
	t.Parallel()
	c := &scriptedCompleter{replies: []reply{{text: "  Strong framing.\n"}}}
	svc := newTestService(c)

	text, err := svc.Feedback(context.Background(), "key", testChallenge(), domain.Submission{Analysis: "a", Recommendation: "r"})
	require.NoError(t, err)
	assert.Equal(t, "Strong framing.", text)
	assert.False(t, c.opts[0].JSON)
}

func TestFeedbackSurfacesServiceError(t *testing.T) {
	t.Parallel()
	c := &scriptedCompleter{replies: []reply{{err: &gemini.ServiceError{Status: 401, Message: "API key not valid"}}}}
	svc := newTestService(c)

	_, err := svc.Feedback(context.Background(), "key", testChallenge(), domain.Submission{})
	var svcErr *gemini.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "API key not valid", svcErr.Message)
	assert.Equal(t, 1, c.Calls(), "feedback is not retried")
}

func TestFeedbackEmptyIsMalformed(t *testing.T) {
	t.Parallel()
	c := &scriptedCompleter{replies: []reply{{text: "   "}}}
	_, err := newTestService(c).Feedback(context.Background(), "key", testChallenge(), domain.Submission{})
	var malformed *recovery.MalformedResponse
	require.ErrorAs(t, err, &malformed)
}

func TestThreadRecordsCompletion(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	kv := store.Scope(mem, "anon_a")
	c := &scriptedCompleter{replies: []reply{{text: "1/ Hook\n---POST---\n2/ Data\n---POST---\n\n---POST---3/ Close"}}}
	svc := newTestService(c)

	res, err := svc.Thread(context.Background(), kv, "key", testChallenge(), domain.Submission{Analysis: "Mobile checkout broke.", Recommendation: "Roll back."})
	require.NoError(t, err)
	assert.Equal(t, []string{"1/ Hook", "2/ Data", "3/ Close"}, res.Segments)
	assert.Equal(t, 1, res.Progress.StreakCount)
	assert.Equal(t, "2025-03-10", res.Progress.LastCompletedDate)
	require.Len(t, res.Progress.History, 1)
	assert.Equal(t, "Checkout drop", res.Progress.History[0].Title)
	assert.Equal(t, "Mobile checkout broke.", res.Progress.History[0].AnalysisExcerpt)
}

func TestThreadWithoutPostsIsMalformed(t *testing.T) {
	t.Parallel()
	mem := store.NewMemory()
	c := &scriptedCompleter{replies: []reply{{text: "---POST---\n  \n---POST---"}}}

	_, err := newTestService(c).Thread(context.Background(), store.Scope(mem, "anon_a"), "key", testChallenge(), domain.Submission{})
	var malformed *recovery.MalformedResponse
	require.ErrorAs(t, err, &malformed)
	assert.Zero(t, mem.Writes(), "failed thread must not touch progress")
}

func TestSplitThread(t *testing.T) {
	t.Parallel()
	assert.Nil(t, SplitThread(""))
	assert.Equal(t, []string{"only"}, SplitThread("only"))
	assert.Equal(t, []string{"a", "b"}, SplitThread("a---POST---b---POST---"))
}
