package clients

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/spacesedan/emotiflow/internal/models"
)

type GeminiClient struct {
	Client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("[GeminiClient] failed to create client: %w", err)
	}

	slog.Info("[GeminiClient] Gemini client initialized",
		slog.String("model", model),
		slog.Duration("timeout", timeout))

	return &GeminiClient{Client: client, model: model}, nil
}

func (g *GeminiClient) Generate(ctx context.Context, prompt string, cfg models.GenerationConfig) (models.Generation, error) {
	resp, err := g.Client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), contentConfig(cfg))
	if err != nil {
		return models.Generation{}, fmt.Errorf("gemini generate content: %w", err)
	}
	return generation(resp), nil
}

func (g *GeminiClient) GenerateStream(ctx context.Context, prompt string, cfg models.GenerationConfig) iter.Seq2[models.Generation, error] {
	return func(yield func(models.Generation, error) bool) {
		for resp, err := range g.Client.Models.GenerateContentStream(ctx, g.model, genai.Text(prompt), contentConfig(cfg)) {
			if err != nil {
				yield(models.Generation{}, fmt.Errorf("gemini generate content stream: %w", err))
				return
			}
			if !yield(generation(resp), nil) {
				return
			}
		}
	}
}

func contentConfig(cfg models.GenerationConfig) *genai.GenerateContentConfig {
	conf := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(cfg.Temperature),
		TopP:            genai.Ptr[float32](1),
		TopK:            genai.Ptr[float32](1),
		MaxOutputTokens: cfg.MaxOutputTokens,
		// thinking tokens count against MaxOutputTokens and would truncate short replies
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	}
	if cfg.Format.IsJSON() {
		conf.ResponseMIMEType = "application/json"
	}
	return conf
}

func generation(resp *genai.GenerateContentResponse) models.Generation {
	gen := models.Generation{Text: resp.Text()}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		gen.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	return gen
}
