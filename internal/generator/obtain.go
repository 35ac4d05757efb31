package generator

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ashureev/dailycase/internal/domain"
	"github.com/ashureev/dailycase/internal/gemini"
	"github.com/ashureev/dailycase/internal/prompt"
	"github.com/ashureev/dailycase/internal/recovery"
	"github.com/ashureev/dailycase/internal/schedule"
	"github.com/ashureev/dailycase/internal/store"
	"github.com/google/uuid"
)

// EventType names a step of an Obtain run.
type EventType string

const (
	EventCacheHit       EventType = "cache_hit"
	EventAttemptStarted EventType = "attempt_started"
	EventAttemptFailed  EventType = "attempt_failed"
	EventGenerated      EventType = "generated"
	EventFailed         EventType = "failed"
)

// Event describes progress of an Obtain run.
type Event struct {
	Type     EventType `json:"type"`
	CacheKey string    `json:"cache_key"`
	Attempt  int       `json:"attempt,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Obtain returns the challenge for offsetDays, generating and caching it on
// a miss. Only *GenerationFailed is returned for generation failures.
func (s *Service) Obtain(ctx context.Context, kv store.KV, offsetDays int, credential string) (*domain.Challenge, error) {
	return s.ObtainWithEvents(ctx, kv, offsetDays, credential, nil)
}

// ObtainWithEvents is Obtain that reports progress to notify. When another
// caller is already generating the same slot, this call waits for that run
// and only sees its outcome.
func (s *Service) ObtainWithEvents(ctx context.Context, kv store.KV, offsetDays int, credential string, notify func(Event)) (*domain.Challenge, error) {
	if notify == nil {
		notify = func(Event) {}
	}
	now := s.now()
	a := s.catalog.Assign(now, offsetDays)
	key := schedule.CacheKey(now, offsetDays)

	if ch, ok := s.cached(ctx, kv, key, a); ok {
		notify(Event{Type: EventCacheHit, CacheKey: key})
		return ch, nil
	}

	// The run outlives the caller's context: an issued model call is allowed
	// to resolve even if the requester goes away.
	runCtx := context.WithoutCancel(ctx)
	v, err, _ := s.flight.Do(kv.Namespace()+"/"+key, func() (any, error) {
		if ch, ok := s.cached(runCtx, kv, key, a); ok {
			notify(Event{Type: EventCacheHit, CacheKey: key})
			return ch, nil
		}
		return s.generate(runCtx, kv, key, a, credential, notify)
	})
	if err != nil {
		return nil, err
	}
	ch := *v.(*domain.Challenge)
	return &ch, nil
}

// cached loads a slot and refreshes its assignment metadata from the clock.
// Stored content is not re-validated.
func (s *Service) cached(ctx context.Context, kv store.KV, key string, a schedule.Assignment) (*domain.Challenge, bool) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		s.logger.Warn("challenge cache read failed", "namespace", kv.Namespace(), "cache_key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var ch domain.Challenge
	if err := json.Unmarshal([]byte(raw), &ch); err != nil {
		s.logger.Warn("discarding unreadable cached challenge", "namespace", kv.Namespace(), "cache_key", key, "error", err)
		return nil, false
	}
	ch.Category = a.Category
	ch.Difficulty = a.Difficulty
	ch.DayIndex = a.DayIndex
	ch.CacheKey = key
	return &ch, true
}

func (s *Service) generate(ctx context.Context, kv store.KV, key string, a schedule.Assignment, credential string, notify func(Event)) (*domain.Challenge, error) {
	log := s.logger.With(
		slog.String("run_id", uuid.NewString()),
		slog.String("namespace", kv.Namespace()),
		slog.String("cache_key", key),
	)
	log.Info("generating challenge", "category", a.Category, "difficulty", a.Difficulty, "day_index", a.DayIndex)

	text := prompt.Challenge(a)
	var content domain.Content
	err := s.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		notify(Event{Type: EventAttemptStarted, CacheKey: key, Attempt: attempt})
		raw, err := s.completer.Complete(ctx, credential, text, gemini.Options{System: prompt.ChallengeSystem, JSON: true})
		if err != nil {
			return err
		}
		c, tier, err := recovery.RecoverWithTier(raw)
		if err != nil {
			return err
		}
		log.Debug("response recovered", "attempt", attempt, "tier", tier)
		content = c
		return nil
	}, func(attempt int, err error) {
		log.Warn("generation attempt failed", "attempt", attempt, "error", err)
		notify(Event{Type: EventAttemptFailed, CacheKey: key, Attempt: attempt, Error: err.Error()})
	})
	if err != nil {
		failed := &GenerationFailed{CacheKey: key, Attempts: s.policy.MaxAttempts, Err: err}
		log.Error("challenge generation failed", "error", err)
		notify(Event{Type: EventFailed, CacheKey: key, Error: failed.Message()})
		return nil, failed
	}

	ch := &domain.Challenge{
		Content:    content,
		Category:   a.Category,
		Difficulty: a.Difficulty,
		DayIndex:   a.DayIndex,
		CacheKey:   key,
	}
	data, err := json.Marshal(ch)
	if err != nil {
		log.Error("failed to encode challenge for cache", "error", err)
	} else if err := kv.Set(ctx, key, string(data)); err != nil {
		log.Error("failed to cache challenge", "error", err)
	}
	log.Info("challenge generated", "title", ch.Title)
	notify(Event{Type: EventGenerated, CacheKey: key})
	return ch, nil
}
