package clients

import (
	"context"
	"iter"

	"github.com/spacesedan/emotiflow/internal/models"
)

// StreamGenerator is implemented by backends that can return a reply piece by
// piece. Each yielded Generation holds the next piece of text; the finish
// reason is set on the last one.
type StreamGenerator interface {
	Generator
	GenerateStream(ctx context.Context, prompt string, cfg models.GenerationConfig) iter.Seq2[models.Generation, error]
}

// Stream streams from g when it supports it, otherwise yields the whole reply
// of a single Generate call.
func Stream(ctx context.Context, g Generator, prompt string, cfg models.GenerationConfig) iter.Seq2[models.Generation, error] {
	if s, ok := g.(StreamGenerator); ok {
		return s.GenerateStream(ctx, prompt, cfg)
	}
	return func(yield func(models.Generation, error) bool) {
		gen, err := g.Generate(ctx, prompt, cfg)
		if err != nil {
			yield(models.Generation{}, err)
			return
		}
		yield(gen, nil)
	}
}
