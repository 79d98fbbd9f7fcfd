package clients

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/spacesedan/emotiflow/internal/models"
)

type BreakerSettings struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// NewBreaker builds the circuit breaker shared by every handle of one provider.
// It fails fast while the upstream keeps erroring; it never retries.
func NewBreaker(s BreakerSettings) *gobreaker.CircuitBreaker {
	threshold := s.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// a caller giving up is not an upstream failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("[CircuitBreaker] State changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
}

// WithCircuitBreaker wraps every handle built by factory with cb.
func WithCircuitBreaker(factory Factory, cb *gobreaker.CircuitBreaker) Factory {
	return func(ctx context.Context, credential string) (Generator, error) {
		next, err := factory(ctx, credential)
		if err != nil {
			return nil, err
		}
		return &breakerGenerator{next: next, cb: cb}, nil
	}
}

type breakerGenerator struct {
	next Generator
	cb   *gobreaker.CircuitBreaker
}

func (b *breakerGenerator) Generate(ctx context.Context, prompt string, cfg models.GenerationConfig) (models.Generation, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Generate(ctx, prompt, cfg)
	})
	if err != nil {
		return models.Generation{}, err
	}
	return out.(models.Generation), nil
}

// GenerateStream runs the whole stream inside one breaker call. A consumer that
// stops early counts as a success.
func (b *breakerGenerator) GenerateStream(ctx context.Context, prompt string, cfg models.GenerationConfig) iter.Seq2[models.Generation, error] {
	return func(yield func(models.Generation, error) bool) {
		stopped := false
		_, err := b.cb.Execute(func() (interface{}, error) {
			for gen, err := range Stream(ctx, b.next, prompt, cfg) {
				if err != nil {
					return nil, err
				}
				if !yield(gen, nil) {
					stopped = true
					return nil, nil
				}
			}
			return nil, nil
		})
		if err != nil && !stopped {
			yield(models.Generation{}, err)
		}
	}
}
