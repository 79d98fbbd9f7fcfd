// Package bootstrap assembles the classifier from configuration for the
// command binaries.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker"

	"github.com/spacesedan/emotiflow/config"
	"github.com/spacesedan/emotiflow/internal/classifier"
	"github.com/spacesedan/emotiflow/internal/clients"
)

type Stack struct {
	Classifier *classifier.Classifier
	Breaker    *gobreaker.CircuitBreaker
}

func NewStack(cfg *config.Config) (*Stack, error) {
	factory, err := clients.NewFactory(clients.ProviderConfig{
		Provider:       cfg.Provider,
		Model:          cfg.Model,
		OllamaURL:      cfg.OllamaURL,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("model provider: %w", err)
	}

	breaker := clients.NewBreaker(clients.BreakerSettings{
		Name:                cfg.Provider,
		MaxRequests:         cfg.BreakerMaxRequests,
		Interval:            cfg.BreakerInterval,
		Timeout:             cfg.BreakerTimeout,
		ConsecutiveFailures: cfg.BreakerConsecutiveFailures,
	})

	c := classifier.New(
		clients.NewHandleCache(clients.WithCircuitBreaker(factory, breaker)),
		classifier.Options{
			MaxBatchSize:     cfg.MaxBatchSize,
			StripMarkdown:    cfg.StripMarkdown,
			SingleMaxTokens:  cfg.SingleMaxTokens,
			PerItemMaxTokens: cfg.PerItemMaxTokens,
		})

	slog.Info("[Bootstrap] Classifier ready",
		slog.String("provider", cfg.Provider),
		slog.String("model", clients.ModelName(cfg.Provider, cfg.Model)),
		slog.Int("max_batch_size", c.MaxBatchSize()),
		slog.Bool("default_credential", cfg.DefaultCredential() != ""))

	return &Stack{Classifier: c, Breaker: breaker}, nil
}

// LoadConfig loads the env file for env and reads the configuration.
func LoadConfig(env string) (*config.Config, error) {
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
