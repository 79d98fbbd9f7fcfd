package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/spacesedan/emotiflow/internal/models"
)

type OpenAIClient struct {
	Client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model string, timeout time.Duration) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	config.HTTPClient = &http.Client{
		Timeout: timeout,
	}

	slog.Info("[OpenAIClient] OpenAI client initialized with custom HTTP timeout",
		slog.String("model", model),
		slog.Duration("timeout", timeout))

	return &OpenAIClient{
		Client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string, cfg models.GenerationConfig) (models.Generation, error) {
	resp, err := c.Client.CreateChatCompletion(ctx, c.request(prompt, cfg))
	if err != nil {
		return models.Generation{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.Generation{}, errors.New("openai chat completion returned no choices")
	}

	return models.Generation{
		Text:         resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}

func (c *OpenAIClient) GenerateStream(ctx context.Context, prompt string, cfg models.GenerationConfig) iter.Seq2[models.Generation, error] {
	return func(yield func(models.Generation, error) bool) {
		stream, err := c.Client.CreateChatCompletionStream(ctx, c.request(prompt, cfg))
		if err != nil {
			yield(models.Generation{}, fmt.Errorf("openai chat completion stream: %w", err))
			return
		}
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(models.Generation{}, fmt.Errorf("openai chat completion stream: %w", err))
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			gen := models.Generation{
				Text:         chunk.Choices[0].Delta.Content,
				FinishReason: string(chunk.Choices[0].FinishReason),
			}
			if !yield(gen, nil) {
				return
			}
		}
	}
}

func (c *OpenAIClient) request(prompt string, cfg models.GenerationConfig) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: requestTemperature(cfg.Temperature),
		MaxTokens:   int(cfg.MaxOutputTokens),
	}
	// json_object mode rejects top-level arrays, so batch replies stay in text mode
	if cfg.Format == models.FormatJSONObject {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

// requestTemperature keeps a zero temperature on the wire; the request field is
// omitempty and a literal 0 would fall back to the server default.
func requestTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
