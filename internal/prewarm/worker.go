// Package prewarm generates upcoming challenges ahead of user visits.
package prewarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/dailycase/internal/domain"
	"github.com/ashureev/dailycase/internal/generator"
	"github.com/ashureev/dailycase/internal/store"
)

// Obtainer is the part of the generator the worker drives.
type Obtainer interface {
	Obtain(ctx context.Context, kv store.KV, offsetDays int, credential string) (*domain.Challenge, error)
}

var _ Obtainer = (*generator.Service)(nil)

// Namespace obtains offsets 0..days-1 for one namespace. It keeps going
// after a failed day and returns the failures joined.
func Namespace(ctx context.Context, kv store.KV, gen Obtainer, days int) error {
	credential, ok, err := kv.Get(ctx, store.CredentialKey)
	if err != nil {
		return fmt.Errorf("read credential: %w", err)
	}
	if !ok || credential == "" {
		return fmt.Errorf("namespace %s has no credential", kv.Namespace())
	}

	var errs []error
	for offset := 0; offset < days; offset++ {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := gen.Obtain(ctx, kv, offset, credential); err != nil {
			errs = append(errs, fmt.Errorf("offset %d: %w", offset, err))
		}
	}
	return errors.Join(errs...)
}

// Sweep prewarms today's challenge for every namespace holding a credential
// and returns how many namespaces succeeded.
func Sweep(ctx context.Context, st store.Store, gen Obtainer) int {
	namespaces, err := st.NamespacesWithKey(ctx, store.CredentialKey)
	if err != nil {
		slog.Error("Prewarm failed to list namespaces", "error", err)
		return 0
	}

	warmed := 0
	for _, ns := range namespaces {
		if ctx.Err() != nil {
			break
		}
		if err := Namespace(ctx, store.Scope(st, ns), gen, 1); err != nil {
			slog.Warn("Prewarm failed", "namespace", ns, "error", err)
			continue
		}
		warmed++
	}
	if len(namespaces) > 0 {
		slog.Info("Prewarm sweep completed", "namespaces", len(namespaces), "warmed", warmed)
	}
	return warmed
}

// StartWorker runs Sweep every interval until ctx is done. The returned
// channel closes when the worker has exited. A non-positive interval starts
// nothing and returns a closed channel.
func StartWorker(ctx context.Context, st store.Store, gen Obtainer, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Prewarm worker started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				Sweep(ctx, st, gen)
			case <-ctx.Done():
				slog.Info("Prewarm worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

// Wait blocks until done closes or ctx ends, whichever comes first.
func Wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
