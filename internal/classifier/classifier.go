// Package classifier is the entry point of the emotion pipeline: it validates
// input, builds prompts, calls the model once per chunk and maps the replies
// back onto the input sentences.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/spacesedan/emotiflow/internal/clients"
	"github.com/spacesedan/emotiflow/internal/emotion"
	"github.com/spacesedan/emotiflow/internal/extraction"
	"github.com/spacesedan/emotiflow/internal/models"
	"github.com/spacesedan/emotiflow/internal/prompt"
	"github.com/spacesedan/emotiflow/internal/sanitize"
	"github.com/spacesedan/emotiflow/internal/utils"
)

const (
	defaultSingleMaxTokens  int32 = 128
	defaultPerItemMaxTokens int32 = 64
)

type Options struct {
	// MaxBatchSize caps the number of sentences sent in one model call.
	MaxBatchSize int
	// StripMarkdown renders Markdown input to plain text before it goes into a prompt.
	StripMarkdown    bool
	SingleMaxTokens  int32
	PerItemMaxTokens int32
}

type Classifier struct {
	handles *clients.HandleCache
	opts    Options
}

func New(handles *clients.HandleCache, opts Options) *Classifier {
	if opts.MaxBatchSize < 1 {
		opts.MaxBatchSize = utils.DEFAULT_BATCH_SIZE
	}
	if opts.SingleMaxTokens <= 0 {
		opts.SingleMaxTokens = defaultSingleMaxTokens
	}
	if opts.PerItemMaxTokens <= 0 {
		opts.PerItemMaxTokens = defaultPerItemMaxTokens
	}
	return &Classifier{handles: handles, opts: opts}
}

func (c *Classifier) MaxBatchSize() int {
	return c.opts.MaxBatchSize
}

// ClassifyOne classifies a single sentence.
func (c *Classifier) ClassifyOne(ctx context.Context, sentence, credential string) (models.ClassificationResult, error) {
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return models.ClassificationResult{}, invalidInput("sentence is empty")
	}

	model, err := c.handle(ctx, credential)
	if err != nil {
		return models.ClassificationResult{}, err
	}

	gen, err := c.generate(ctx, model, prompt.BuildSingle(c.promptText(sentence)), models.GenerationConfig{
		Temperature:     0,
		MaxOutputTokens: c.opts.SingleMaxTokens,
		Format:          models.FormatJSONObject,
	})
	if err != nil {
		return models.ClassificationResult{}, err
	}

	label := emotion.Normalize(extraction.ExtractLabel(gen.Text))
	if label == emotion.None {
		slog.Warn("[Classifier] Unrecognized label in model response",
			slog.String("finish_reason", gen.FinishReason),
			slog.Int("response_length", len(gen.Text)))
	}

	return models.ClassificationResult{
		Sentence:         sentence,
		PredictedEmotion: label,
		FinishReason:     gen.FinishReason,
		RawResponse:      gen.Text,
	}, nil
}

// ClassifyStream classifies a single sentence while streaming the model reply.
// onToken, when set, receives every piece of text as it arrives; an error from
// it aborts the call. With stopEarly the stream is abandoned as soon as the text
// received so far names a label, and the finish reason becomes "stopped_early".
func (c *Classifier) ClassifyStream(ctx context.Context, sentence, credential string, stopEarly bool, onToken func(token string) error) (models.ClassificationResult, error) {
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return models.ClassificationResult{}, invalidInput("sentence is empty")
	}

	model, err := c.handle(ctx, credential)
	if err != nil {
		return models.ClassificationResult{}, err
	}

	start := time.Now()
	var text strings.Builder
	finishReason := ""
	label := emotion.None

	stream := clients.Stream(ctx, model, prompt.BuildSingle(c.promptText(sentence)), models.GenerationConfig{
		Temperature:     0,
		MaxOutputTokens: c.opts.SingleMaxTokens,
		Format:          models.FormatJSONObject,
	})
	for gen, err := range stream {
		if err != nil {
			slog.Error("[Classifier] Model stream failed",
				slog.String("error", err.Error()),
				slog.Duration("elapsed", time.Since(start)))
			return models.ClassificationResult{}, upstreamFailure(err)
		}

		if gen.Text != "" {
			text.WriteString(gen.Text)
			if onToken != nil {
				if err := onToken(gen.Text); err != nil {
					return models.ClassificationResult{}, err
				}
			}
		}
		if gen.FinishReason != "" {
			finishReason = gen.FinishReason
		}

		if stopEarly {
			if l := emotion.Normalize(extraction.ExtractLabel(text.String())); l != emotion.None {
				label = l
				if finishReason == "" {
					finishReason = "stopped_early"
				}
				break
			}
		}
	}

	if label == emotion.None {
		label = emotion.Normalize(extraction.ExtractLabel(text.String()))
	}
	if finishReason == "" {
		finishReason = "done"
	}

	slog.Info("[Classifier] Model stream finished",
		slog.String("finish_reason", finishReason),
		slog.Bool("recognized", label != emotion.None),
		slog.Duration("elapsed", time.Since(start)))

	return models.ClassificationResult{
		Sentence:         sentence,
		PredictedEmotion: label,
		FinishReason:     finishReason,
		RawResponse:      text.String(),
	}, nil
}

// ClassifyMany classifies sentences in chunks of at most MaxBatchSize, one model
// call per chunk. Empty sentences are dropped; the remaining results keep the
// input order. If any chunk reply has no recoverable JSON array the whole call
// fails, since positions could no longer be trusted.
func (c *Classifier) ClassifyMany(ctx context.Context, sentences []string, credential string) ([]models.ClassificationResult, error) {
	cleaned := lo.FilterMap(sentences, func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != ""
	})
	if len(cleaned) == 0 {
		return nil, invalidInput("no non-empty sentences")
	}

	model, err := c.handle(ctx, credential)
	if err != nil {
		return nil, err
	}

	slog.Info("[Classifier] Classifying sentences",
		slog.Int("sentences", len(cleaned)),
		slog.Int("chunks", utils.ChunkCount(len(cleaned), c.opts.MaxBatchSize)))

	results := make([]models.ClassificationResult, 0, len(cleaned))
	chunkIndex := 0
	for chunk := range utils.Chunk(cleaned, c.opts.MaxBatchSize) {
		chunkResults, err := c.classifyChunk(ctx, model, chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunkIndex, err)
		}
		results = append(results, chunkResults...)
		chunkIndex++
	}

	return results, nil
}

func (c *Classifier) classifyChunk(ctx context.Context, model clients.Generator, chunk []string) ([]models.ClassificationResult, error) {
	gen, err := c.generate(ctx, model, prompt.BuildBatch(lo.Map(chunk, func(s string, _ int) string {
		return c.promptText(s)
	})), models.GenerationConfig{
		Temperature:     0,
		MaxOutputTokens: c.opts.PerItemMaxTokens * int32(len(chunk)),
		Format:          models.FormatJSONArray,
	})
	if err != nil {
		return nil, err
	}

	entries, err := extraction.ExtractBatch(gen.Text)
	if err != nil {
		slog.Error("[Classifier] Failed to extract batch response",
			slog.String("error", err.Error()),
			slog.String("finish_reason", gen.FinishReason),
			slog.Int("chunk_size", len(chunk)),
			slog.Int("response_length", len(gen.Text)))
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailure, err)
	}

	if len(entries) != len(chunk) {
		slog.Warn("[Classifier] Batch response length does not match chunk",
			slog.Int("expected", len(chunk)),
			slog.Int("actual", len(entries)),
			slog.String("finish_reason", gen.FinishReason))
	}

	results := make([]models.ClassificationResult, len(chunk))
	for i, sentence := range chunk {
		label := emotion.None
		if i < len(entries) && entries[i].HasLabel {
			label = emotion.Normalize(entries[i].Label)
		}
		results[i] = models.ClassificationResult{
			Sentence:         sentence,
			PredictedEmotion: label,
			FinishReason:     gen.FinishReason,
			RawResponse:      gen.Text,
		}
	}
	return results, nil
}

func (c *Classifier) handle(ctx context.Context, credential string) (clients.Generator, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, invalidInput("credential is empty")
	}

	model, err := c.handles.Get(ctx, credential)
	if err != nil {
		return nil, upstreamFailure(err)
	}
	return model, nil
}

func (c *Classifier) generate(ctx context.Context, model clients.Generator, text string, cfg models.GenerationConfig) (models.Generation, error) {
	start := time.Now()
	gen, err := model.Generate(ctx, text, cfg)
	if err != nil {
		slog.Error("[Classifier] Model call failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return models.Generation{}, upstreamFailure(err)
	}

	slog.Info("[Classifier] Model response received",
		slog.String("finish_reason", gen.FinishReason),
		slog.Duration("elapsed", time.Since(start)))
	return gen, nil
}

func (c *Classifier) promptText(sentence string) string {
	if !c.opts.StripMarkdown {
		return sentence
	}
	if text := sanitize.MarkdownToText(sentence); text != "" {
		return text
	}
	return sentence
}
