// Package progress keeps the streak counter and completion history.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ashureev/dailycase/internal/domain"
	"github.com/ashureev/dailycase/internal/schedule"
	"github.com/ashureev/dailycase/internal/store"
)

const (
	keyStreakCount = "streak:count"
	keyLastDate    = "streak:last_date"
	keyHistory     = "history"

	// HistoryLimit is how many completions history retains.
	HistoryLimit = 60
	// ExcerptLength caps the stored analysis excerpt, in characters.
	ExcerptLength = 120
)

// Ledger reads and updates progress inside one store namespace.
type Ledger struct {
	kv     store.KV
	logger *slog.Logger
}

// NewLedger creates a Ledger over kv.
func NewLedger(kv store.KV, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{kv: kv, logger: logger}
}

// Snapshot returns the persisted progress. Unreadable values fall back to
// their zero state.
func (l *Ledger) Snapshot(ctx context.Context) (domain.Progress, error) {
	var p domain.Progress

	count, ok, err := l.kv.Get(ctx, keyStreakCount)
	if err != nil {
		return p, fmt.Errorf("read streak count: %w", err)
	}
	if ok {
		n, convErr := strconv.Atoi(count)
		if convErr != nil || n < 0 {
			l.logger.Warn("ignoring unreadable streak count", "namespace", l.kv.Namespace(), "value", count)
		} else {
			p.StreakCount = n
		}
	}

	last, _, err := l.kv.Get(ctx, keyLastDate)
	if err != nil {
		return p, fmt.Errorf("read last completed date: %w", err)
	}
	p.LastCompletedDate = last

	raw, ok, err := l.kv.Get(ctx, keyHistory)
	if err != nil {
		return p, fmt.Errorf("read history: %w", err)
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.History); err != nil {
			l.logger.Warn("ignoring unreadable history", "namespace", l.kv.Namespace(), "error", err)
			p.History = nil
		}
	}
	if p.History == nil {
		p.History = []domain.HistoryEntry{}
	}
	return p, nil
}

// RecordCompletion applies one completed day to the streak and history and
// persists the result.
func (l *Ledger) RecordCompletion(ctx context.Context, today string, dayIndex int, summary domain.ChallengeSummary) (domain.Progress, error) {
	p, err := l.Snapshot(ctx)
	if err != nil {
		return p, err
	}

	p = Apply(p, today, dayIndex, summary)

	history, err := json.Marshal(p.History)
	if err != nil {
		return p, fmt.Errorf("encode history: %w", err)
	}
	// One atomic write: a failure leaves the previous streak and history intact.
	err = l.kv.SetMany(ctx, map[string]string{
		keyStreakCount: strconv.Itoa(p.StreakCount),
		keyLastDate:    p.LastCompletedDate,
		keyHistory:     string(history),
	})
	if err != nil {
		return p, fmt.Errorf("write progress: %w", err)
	}

	l.logger.Info("completion recorded",
		"namespace", l.kv.Namespace(),
		"date", today,
		"day_index", dayIndex,
		"streak", p.StreakCount)
	return p, nil
}

// Apply is the pure streak and history transition behind RecordCompletion.
func Apply(p domain.Progress, today string, dayIndex int, summary domain.ChallengeSummary) domain.Progress {
	switch p.LastCompletedDate {
	case schedule.Yesterday(today):
		p.StreakCount++
	case today:
		// Same-day re-completion keeps the streak.
	default:
		p.StreakCount = 1
	}
	if p.StreakCount < 1 {
		p.StreakCount = 1
	}
	p.LastCompletedDate = today

	entry := domain.HistoryEntry{
		Date:            today,
		DayIndex:        dayIndex,
		Title:           summary.Title,
		Category:        summary.Category,
		Difficulty:      summary.Difficulty,
		AnalysisExcerpt: truncate(summary.Analysis, ExcerptLength),
	}
	history := make([]domain.HistoryEntry, 0, len(p.History)+1)
	history = append(history, entry)
	for _, h := range p.History {
		if h.Date != today {
			history = append(history, h)
		}
	}
	if len(history) > HistoryLimit {
		history = history[:HistoryLimit]
	}
	p.History = history
	return p
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
