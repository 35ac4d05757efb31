package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/dailycase/internal/domain"
	"github.com/ashureev/dailycase/internal/gemini"
	"github.com/ashureev/dailycase/internal/progress"
	"github.com/ashureev/dailycase/internal/prompt"
	"github.com/ashureev/dailycase/internal/recovery"
	"github.com/ashureev/dailycase/internal/store"
)

// ThreadResult is a generated thread and the progress it produced.
type ThreadResult struct {
	Segments []string        `json:"segments"`
	Progress domain.Progress `json:"progress"`
}

// Feedback asks the model to review a submission. It makes a single attempt
// and returns service and parse errors as they are.
func (s *Service) Feedback(ctx context.Context, credential string, ch *domain.Challenge, sub domain.Submission) (string, error) {
	text, err := s.completer.Complete(ctx, credential, prompt.Feedback(ch, sub), gemini.Options{})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &recovery.MalformedResponse{Reason: "empty feedback"}
	}
	return text, nil
}

// Thread turns a submission into thread posts and, on success, records the
// completion in the namespace's progress ledger.
func (s *Service) Thread(ctx context.Context, kv store.KV, credential string, ch *domain.Challenge, sub domain.Submission) (*ThreadResult, error) {
	text, err := s.completer.Complete(ctx, credential, prompt.Thread(ch, sub, ch.DayIndex), gemini.Options{})
	if err != nil {
		return nil, err
	}
	segments := SplitThread(text)
	if len(segments) == 0 {
		return nil, &recovery.MalformedResponse{Reason: "thread has no posts"}
	}

	ledger := progress.NewLedger(kv, s.logger)
	p, err := ledger.RecordCompletion(ctx, s.Today(), ch.DayIndex, ch.Summary(sub.Analysis))
	if err != nil {
		return nil, fmt.Errorf("record completion: %w", err)
	}
	return &ThreadResult{Segments: segments, Progress: p}, nil
}

// SplitThread splits model output on the thread delimiter, dropping empty posts.
func SplitThread(text string) []string {
	var out []string
	for _, part := range strings.Split(text, prompt.ThreadDelimiter) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
