package classifier

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/emotiflow/internal/clients"
	"github.com/spacesedan/emotiflow/internal/emotion"
	"github.com/spacesedan/emotiflow/internal/models"
)

// streamModel replays pieces as a stream; the last piece carries finishReason.
type streamModel struct {
	pieces       []string
	finishReason string
	err          error
	sent         int
}

func (s *streamModel) Generate(context.Context, string, models.GenerationConfig) (models.Generation, error) {
	return models.Generation{}, errors.New("streaming only")
}

func (s *streamModel) GenerateStream(context.Context, string, models.GenerationConfig) iter.Seq2[models.Generation, error] {
	return func(yield func(models.Generation, error) bool) {
		for i, p := range s.pieces {
			gen := models.Generation{Text: p}
			if i == len(s.pieces)-1 {
				gen.FinishReason = s.finishReason
			}
			s.sent++
			if !yield(gen, nil) {
				return
			}
		}
		if s.err != nil {
			yield(models.Generation{}, s.err)
		}
	}
}

func newStreamClassifier(model clients.Generator) *Classifier {
	return New(clients.NewHandleCache(func(context.Context, string) (clients.Generator, error) {
		return model, nil
	}), Options{})
}

func TestClassifyStream_ForwardsTokens(t *testing.T) {
	model := &streamModel{pieces: []string{`{"label"`, `: "scared"`, `}`}, finishReason: "stop"}

	var tokens []string
	res, err := newStreamClassifier(model).ClassifyStream(context.Background(), " what was that noise ", "key", false,
		func(token string) error {
			tokens = append(tokens, token)
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, []string{`{"label"`, `: "scared"`, `}`}, tokens)
	assert.Equal(t, "what was that noise", res.Sentence)
	assert.Equal(t, emotion.Fear, res.PredictedEmotion)
	assert.Equal(t, "stop", res.FinishReason)
	assert.Equal(t, `{"label": "scared"}`, res.RawResponse)
}

func TestClassifyStream_StopsEarly(t *testing.T) {
	model := &streamModel{pieces: []string{`{"label": `, `"joy"}`, ` trailing`, ` noise`}, finishReason: "stop"}

	res, err := newStreamClassifier(model).ClassifyStream(context.Background(), "yay", "key", true, nil)
	require.NoError(t, err)

	assert.Equal(t, emotion.Joy, res.PredictedEmotion)
	assert.Equal(t, "stopped_early", res.FinishReason)
	assert.Equal(t, 2, model.sent)
}

func TestClassifyStream_DefaultsFinishReason(t *testing.T) {
	model := &streamModel{pieces: []string{"love"}}

	res, err := newStreamClassifier(model).ClassifyStream(context.Background(), "aww", "key", false, nil)
	require.NoError(t, err)
	assert.Equal(t, emotion.Love, res.PredictedEmotion)
	assert.Equal(t, "done", res.FinishReason)
}

func TestClassifyStream_FallsBackToGenerate(t *testing.T) {
	model := &fakeModel{replies: []models.Generation{{Text: `{"label": "anger"}`, FinishReason: "STOP"}}}
	c, _ := newTestClassifier(model, Options{})

	var tokens []string
	res, err := c.ClassifyStream(context.Background(), "grr", "key", false, func(token string) error {
		tokens = append(tokens, token)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"label": "anger"}`}, tokens)
	assert.Equal(t, emotion.Anger, res.PredictedEmotion)
	assert.Equal(t, "STOP", res.FinishReason)
}

func TestClassifyStream_Errors(t *testing.T) {
	model := &streamModel{pieces: []string{"jo"}, err: errors.New("connection reset")}
	c := newStreamClassifier(model)

	_, err := c.ClassifyStream(context.Background(), "x", "key", false, nil)
	assert.ErrorIs(t, err, ErrUpstreamFailure)

	_, err = c.ClassifyStream(context.Background(), "   ", "key", false, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.ClassifyStream(context.Background(), "x", "", false, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	gone := errors.New("client went away")
	_, err = newStreamClassifier(&streamModel{pieces: []string{"a", "b"}}).
		ClassifyStream(context.Background(), "x", "key", false, func(string) error { return gone })
	assert.ErrorIs(t, err, gone)
}
