// Package generator drives challenge generation, submission feedback and
// thread generation on top of the completion client.
package generator

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/dailycase/internal/gemini"
	"github.com/ashureev/dailycase/internal/retry"
	"github.com/ashureev/dailycase/internal/schedule"
	"golang.org/x/sync/singleflight"
)

// Completer issues one text-generation call.
type Completer interface {
	Complete(ctx context.Context, credential, prompt string, opts gemini.Options) (string, error)
}

// Ensure the Gemini client satisfies Completer.
var _ Completer = (*gemini.Client)(nil)

// Service owns the generation pipeline. It is safe for concurrent use and
// is shared by every namespace in the process.
type Service struct {
	completer Completer
	catalog   *schedule.Catalog
	policy    retry.Policy
	now       func() time.Time
	logger    *slog.Logger
	flight    singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithCatalog replaces the default category rotation.
func WithCatalog(c *schedule.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithPolicy replaces the default retry policy.
func WithPolicy(p retry.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service.
func NewService(completer Completer, opts ...Option) *Service {
	s := &Service{
		completer: completer,
		catalog:   schedule.DefaultCatalog(),
		policy:    retry.Default(),
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the retry policy in use.
func (s *Service) Policy() retry.Policy {
	return s.policy
}

// Today returns the current calendar date.
func (s *Service) Today() string {
	return schedule.Today(s.now())
}
