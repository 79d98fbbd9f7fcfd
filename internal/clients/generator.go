package clients

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/emotiflow/internal/models"
)

// Generator is a credential-bound handle to a hosted model.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg models.GenerationConfig) (models.Generation, error)
}

// Factory builds a Generator for one credential.
type Factory func(ctx context.Context, credential string) (Generator, error)

type ProviderConfig struct {
	Provider       string
	Model          string
	OllamaURL      string
	RequestTimeout time.Duration
}

// NewFactory returns the Factory for the configured provider, filling in
// provider defaults for empty fields.
func NewFactory(cfg ProviderConfig) (Factory, error) {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DEFAULT_REQUEST_TIMEOUT
	}

	switch cfg.Provider {
	case PROVIDER_GEMINI, "":
		model := ModelName(cfg.Provider, cfg.Model)
		slog.Info("[ModelFactory] Using Gemini provider", slog.String("model", model))
		return func(ctx context.Context, credential string) (Generator, error) {
			return NewGeminiClient(ctx, credential, model, timeout)
		}, nil
	case PROVIDER_OPENAI:
		model := ModelName(cfg.Provider, cfg.Model)
		slog.Info("[ModelFactory] Using OpenAI provider", slog.String("model", model))
		return func(_ context.Context, credential string) (Generator, error) {
			return NewOpenAIClient(credential, model, timeout), nil
		}, nil
	case PROVIDER_OLLAMA:
		model := ModelName(cfg.Provider, cfg.Model)
		baseURL := orDefault(cfg.OllamaURL, DEFAULT_OLLAMA_URL)
		slog.Info("[ModelFactory] Using Ollama provider",
			slog.String("model", model),
			slog.String("url", baseURL))
		return func(_ context.Context, credential string) (Generator, error) {
			return NewOllamaClient(baseURL, model, credential, timeout), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// ModelName resolves the model a provider will use when none is configured.
func ModelName(provider, model string) string {
	switch provider {
	case PROVIDER_OPENAI:
		return orDefault(model, DEFAULT_OPENAI_MODEL)
	case PROVIDER_OLLAMA:
		return orDefault(model, DEFAULT_OLLAMA_MODEL)
	default:
		return orDefault(model, DEFAULT_GEMINI_MODEL)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
