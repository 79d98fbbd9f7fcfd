package clients

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/spacesedan/emotiflow/internal/models"
)

const ollamaGeneratePath = "/api/generate"

type OllamaClient struct {
	Client  *http.Client
	baseURL string
	model   string
	token   string
}

// NewOllamaClient talks to an Ollama server. The token is sent as a bearer
// credential for deployments that sit behind an authenticating proxy.
func NewOllamaClient(baseURL, model, token string, timeout time.Duration) *OllamaClient {
	slog.Info("[OllamaClient] Initializing Client",
		slog.String("model", model),
		slog.Duration("timeout", timeout))

	return &OllamaClient{
		Client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		token:   token,
	}
}

func (o *OllamaClient) Generate(ctx context.Context, prompt string, cfg models.GenerationConfig) (models.Generation, error) {
	var output models.OllamaGenerateResponse
	if err := o.postJSON(ctx, o.baseURL+ollamaGeneratePath, o.request(prompt, cfg, false), &output); err != nil {
		return models.Generation{}, err
	}

	return models.Generation{Text: output.Response, FinishReason: finishReason(output)}, nil
}

// GenerateStream reads Ollama's newline-delimited stream. Every chunk carries a
// piece of text; the last one carries the finish reason. Stopping the range
// early closes the connection.
func (o *OllamaClient) GenerateStream(ctx context.Context, prompt string, cfg models.GenerationConfig) iter.Seq2[models.Generation, error] {
	return func(yield func(models.Generation, error) bool) {
		resp, err := o.post(ctx, o.baseURL+ollamaGeneratePath, o.request(prompt, cfg, true))
		if err != nil {
			yield(models.Generation{}, err)
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk models.OllamaGenerateResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				yield(models.Generation{}, fmt.Errorf("failed to unmarshal stream chunk: %w", err))
				return
			}

			if !yield(models.Generation{Text: chunk.Response, FinishReason: finishReason(chunk)}, nil) {
				return
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(models.Generation{}, fmt.Errorf("ollama stream read failed: %w", err))
			return
		}
		yield(models.Generation{}, errors.New("ollama stream ended without a done chunk"))
	}
}

func (o *OllamaClient) request(prompt string, cfg models.GenerationConfig, stream bool) models.OllamaGenerateRequest {
	input := models.OllamaGenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: stream,
		Options: models.OllamaOptions{
			Temperature: cfg.Temperature,
			NumPredict:  cfg.MaxOutputTokens,
		},
	}
	// JSON mode constrains the reply to a single object, so batch arrays stay in text mode
	if cfg.Format == models.FormatJSONObject {
		input.Format = "json"
	}
	return input
}

func finishReason(chunk models.OllamaGenerateResponse) string {
	if chunk.DoneReason == "" && chunk.Done {
		return "done"
	}
	return chunk.DoneReason
}

// post sends input and returns the open response once the status is 200.
func (o *OllamaClient) post(ctx context.Context, endpoint string, input interface{}) (*http.Response, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", USER_AGENT)
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, preview(respBody))
	}
	return resp, nil
}

func (o *OllamaClient) postJSON(ctx context.Context, endpoint string, input interface{}, output interface{}) error {
	resp, err := o.post(ctx, endpoint, input)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(respBody, output); err != nil {
		slog.Error("[OllamaClient] Failed to unmarshal response",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
			slog.String("raw_response", preview(respBody)),
			slog.Int("raw_response_length", len(respBody)))
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

func preview(respBody []byte) string {
	raw := string(respBody)
	if len(raw) > 100 {
		raw = raw[:100] + "..."
	}
	return raw
}
