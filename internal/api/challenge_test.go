package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/dailycase/internal/domain"
	"github.com/ashureev/dailycase/internal/gemini"
	"github.com/ashureev/dailycase/internal/generator"
	"github.com/ashureev/dailycase/internal/identity"
	"github.com/ashureev/dailycase/internal/prompt"
	"github.com/ashureev/dailycase/internal/retry"
	"github.com/ashureev/dailycase/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUser      = "anon_0123456789abcdef0123456789abcdef"
	validResponse = `{"title":"Signup slump","problem":"Signups fell.","hints":["Check the form"],"keyMetrics":["signup rate"],"tools":["SQL"],"teachingPoint":"Check instrumentation first."}`
)

// fakeCompleter answers by prompt kind.
type fakeCompleter struct {
	calls     atomic.Int32
	challenge string
	err       error
}

func (f *fakeCompleter) Complete(_ context.Context, _, text string, opts gemini.Options) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	switch {
	case opts.JSON:
		return f.challenge, nil
	case strings.Contains(text, prompt.ThreadDelimiter):
		return "Hook" + prompt.ThreadDelimiter + "Data" + prompt.ThreadDelimiter + "Close", nil
	default:
		return "Strengths: clear.\nGaps: none.\nNext step: segment.", nil
	}
}

type testEnv struct {
	mem       *store.MemoryStore
	completer *fakeCompleter
	router    http.Handler
}

func newEnv(t *testing.T, limiter *RateLimiter) *testEnv {
	t.Helper()
	env := &testEnv{
		mem:       store.NewMemory(),
		completer: &fakeCompleter{challenge: validResponse},
	}
	gen := generator.NewService(env.completer,
		generator.WithPolicy(retry.Policy{MaxAttempts: 3, Backoff: retry.Fixed(time.Millisecond)}),
		generator.WithClock(func() time.Time { return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC) }),
	)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.WithUserID(req.Context(), testUser)))
		})
	})
	NewChallengeHandler(NewHandler(env.mem, gen, "gemini-test"), limiter).RegisterRoutes(r)
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) setCredential(t *testing.T) {
	t.Helper()
	w := e.do(t, http.MethodPut, "/api/credential", `{"credential":"AIza-test"}`)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestConfigReflectsCredential(t *testing.T) {
	env := newEnv(t, nil)

	got := decodeBody[map[string]any](t, env.do(t, http.MethodGet, "/api/config", ""))
	assert.Equal(t, false, got["has_credential"])
	assert.Equal(t, "gemini-test", got["model"])
	assert.EqualValues(t, 3, got["max_attempts"])

	env.setCredential(t)
	got = decodeBody[map[string]any](t, env.do(t, http.MethodGet, "/api/config", ""))
	assert.Equal(t, true, got["has_credential"])
}

func TestPutCredentialRejectsBlank(t *testing.T) {
	env := newEnv(t, nil)
	w := env.do(t, http.MethodPut, "/api/credential", `{"credential":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetChallengeRequiresCredential(t *testing.T) {
	env := newEnv(t, nil)
	w := env.do(t, http.MethodGet, "/api/challenge", "")
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Zero(t, env.completer.calls.Load())
}

func TestGetChallenge(t *testing.T) {
	env := newEnv(t, nil)
	env.setCredential(t)

	w := env.do(t, http.MethodGet, "/api/challenge?offset=1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ch := decodeBody[domain.Challenge](t, w)
	assert.Equal(t, "Signup slump", ch.Title)
	assert.Equal(t, 70, ch.DayIndex)
	assert.Equal(t, "challenge:day:70", ch.CacheKey)

	w = env.do(t, http.MethodGet, "/api/challenge?offset=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, env.completer.calls.Load())
}

func TestGetChallengeBadOffset(t *testing.T) {
	env := newEnv(t, nil)
	env.setCredential(t)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/challenge?offset=x", "").Code)
}

func TestGetChallengeGenerationFailed(t *testing.T) {
	env := newEnv(t, nil)
	env.setCredential(t)
	env.completer.err = &gemini.ServiceError{Status: 429, Message: "Resource has been exhausted"}

	w := env.do(t, http.MethodGet, "/api/challenge", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	got := decodeBody[map[string]any](t, w)
	assert.Equal(t, "Resource has been exhausted", got["error"])
	assert.Equal(t, true, got["retryable"])
	assert.EqualValues(t, 3, got["attempts"])
	assert.EqualValues(t, 3, env.completer.calls.Load())
}

func TestFeedback(t *testing.T) {
	env := newEnv(t, nil)
	env.setCredential(t)

	w := env.do(t, http.MethodPost, "/api/feedback", `{"offset":0,"analysis":"Form broke on iOS.","recommendation":"Fix the form."}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decodeBody[map[string]string](t, w)
	assert.Contains(t, got["feedback"], "Strengths")
}

func TestFeedbackRequiresBothFields(t *testing.T) {
	env := newEnv(t, nil)
	env.setCredential(t)
	w := env.do(t, http.MethodPost, "/api/feedback", `{"analysis":"only analysis"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestThreadAdvancesProgress(t *testing.T) {
	env := newEnv(t, nil)
	env.setCredential(t)

	w := env.do(t, http.MethodPost, "/api/thread", `{"offset":0,"analysis":"Form broke on iOS.","recommendation":"Fix the form."}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeBody[generator.ThreadResult](t, w)
	assert.Equal(t, []string{"Hook", "Data", "Close"}, res.Segments)
	assert.Equal(t, 1, res.Progress.StreakCount)

	p := decodeBody[domain.Progress](t, env.do(t, http.MethodGet, "/api/progress", ""))
	assert.Equal(t, 1, p.StreakCount)
	assert.Equal(t, "2025-03-10", p.LastCompletedDate)
	require.Len(t, p.History, 1)
	assert.Equal(t, "Signup slump", p.History[0].Title)
}

func TestProgressEmpty(t *testing.T) {
	env := newEnv(t, nil)
	p := decodeBody[domain.Progress](t, env.do(t, http.MethodGet, "/api/progress", ""))
	assert.Zero(t, p.StreakCount)
	assert.Empty(t, p.History)
}

func TestGenerationRoutesAreRateLimited(t *testing.T) {
	limiter := NewRateLimiter(2, time.Hour)
	defer limiter.Stop()
	env := newEnv(t, limiter)
	env.setCredential(t)

	for range 2 {
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/challenge", "").Code)
	}
	w := env.do(t, http.MethodGet, "/api/challenge", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))

	// Progress is not limited.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/progress", "").Code)
}
