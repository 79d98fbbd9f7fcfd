package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/emotiflow/internal/clients"
	"github.com/spacesedan/emotiflow/internal/emotion"
	"github.com/spacesedan/emotiflow/internal/models"
)

type call struct {
	prompt string
	cfg    models.GenerationConfig
}

// fakeModel answers each call with the next scripted reply.
type fakeModel struct {
	replies []models.Generation
	err     error
	calls   []call
}

func (f *fakeModel) Generate(_ context.Context, prompt string, cfg models.GenerationConfig) (models.Generation, error) {
	f.calls = append(f.calls, call{prompt: prompt, cfg: cfg})
	if f.err != nil {
		return models.Generation{}, f.err
	}
	if len(f.calls) > len(f.replies) {
		return models.Generation{}, fmt.Errorf("unexpected call %d", len(f.calls))
	}
	return f.replies[len(f.calls)-1], nil
}

func newTestClassifier(model *fakeModel, opts Options) (*Classifier, *int) {
	builds := 0
	factory := func(context.Context, string) (clients.Generator, error) {
		builds++
		return model, nil
	}
	return New(clients.NewHandleCache(factory), opts), &builds
}

// batchReply answers a numbered batch prompt with the given labels.
func batchReply(labels ...string) models.Generation {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf(`{"sentence":"s%d","label":%q}`, i, l)
	}
	return models.Generation{Text: "[" + strings.Join(parts, ",") + "]", FinishReason: "STOP"}
}

func TestClassifyOne_FencedSynonym(t *testing.T) {
	model := &fakeModel{replies: []models.Generation{{Text: "```json\n{\"label\": \"happy\"}\n```", FinishReason: "STOP"}}}
	c, _ := newTestClassifier(model, Options{})

	res, err := c.ClassifyOne(context.Background(), "  I feel so excited about the trip tomorrow!  ", "key")
	require.NoError(t, err)

	assert.Equal(t, "I feel so excited about the trip tomorrow!", res.Sentence)
	assert.Equal(t, emotion.Joy, res.PredictedEmotion)
	assert.Equal(t, "STOP", res.FinishReason)
	assert.Equal(t, "```json\n{\"label\": \"happy\"}\n```", res.RawResponse)

	require.Len(t, model.calls, 1)
	assert.Equal(t, float32(0), model.calls[0].cfg.Temperature)
	assert.Equal(t, int32(128), model.calls[0].cfg.MaxOutputTokens)
	assert.Equal(t, models.FormatJSONObject, model.calls[0].cfg.Format)
	assert.Contains(t, model.calls[0].prompt, "Sentence: I feel so excited about the trip tomorrow!")
}

func TestClassifyOne_UnrecognizedLabelIsNotAnError(t *testing.T) {
	model := &fakeModel{replies: []models.Generation{{Text: "I cannot decide", FinishReason: "MAX_TOKENS"}}}
	c, _ := newTestClassifier(model, Options{})

	res, err := c.ClassifyOne(context.Background(), "hmm", "key")
	require.NoError(t, err)
	assert.Equal(t, emotion.None, res.PredictedEmotion)
	assert.False(t, res.Recognized())
	assert.Equal(t, "MAX_TOKENS", res.FinishReason)
}

func TestClassifyOne_InvalidInput(t *testing.T) {
	tests := []struct {
		name       string
		sentence   string
		credential string
	}{
		{name: "empty sentence", sentence: "   ", credential: "key"},
		{name: "empty credential", sentence: "hello", credential: " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{}
			c, builds := newTestClassifier(model, Options{})

			_, err := c.ClassifyOne(context.Background(), tt.sentence, tt.credential)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, KindInvalidInput, Kind(err))
			assert.Empty(t, model.calls)
			assert.Zero(t, *builds)
		})
	}
}

func TestClassifyOne_UpstreamFailure(t *testing.T) {
	upstream := errors.New("connection reset")
	model := &fakeModel{err: upstream}
	c, _ := newTestClassifier(model, Options{})

	_, err := c.ClassifyOne(context.Background(), "hello", "key")
	require.ErrorIs(t, err, ErrUpstreamFailure)
	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, KindUpstreamFailure, Kind(err))
}

func TestClassifyOne_HandleConstructionFailure(t *testing.T) {
	factory := func(context.Context, string) (clients.Generator, error) {
		return nil, errors.New("bad api key")
	}
	c := New(clients.NewHandleCache(factory), Options{})

	_, err := c.ClassifyOne(context.Background(), "hello", "key")
	assert.ErrorIs(t, err, ErrUpstreamFailure)
}

func TestClassifyOne_ReusesHandlePerCredential(t *testing.T) {
	model := &fakeModel{replies: []models.Generation{{Text: `"joy"`}, {Text: `"joy"`}, {Text: `"joy"`}}}
	c, builds := newTestClassifier(model, Options{})

	for _, cred := range []string{"a", "a", "b"} {
		_, err := c.ClassifyOne(context.Background(), "hi", cred)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, *builds)
}

func TestClassifyOne_StripMarkdown(t *testing.T) {
	model := &fakeModel{replies: []models.Generation{{Text: `{"label":"joy"}`}}}
	c, _ := newTestClassifier(model, Options{StripMarkdown: true})

	res, err := c.ClassifyOne(context.Background(), "I am **so** happy, see [this](https://example.com)", "key")
	require.NoError(t, err)
	assert.Equal(t, "I am **so** happy, see [this](https://example.com)", res.Sentence)
	assert.Contains(t, model.calls[0].prompt, "Sentence: I am so happy, see this")
}

func TestClassifyMany_PartialLabels(t *testing.T) {
	reply := models.Generation{
		Text:         `[{"sentence":"great news!","label":"joy"},{"sentence":"xyz garbled!!","label":"blah"}]`,
		FinishReason: "STOP",
	}
	model := &fakeModel{replies: []models.Generation{reply}}
	c, _ := newTestClassifier(model, Options{MaxBatchSize: 4})

	results, err := c.ClassifyMany(context.Background(), []string{"great news!", "xyz garbled!!"}, "key")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "great news!", results[0].Sentence)
	assert.Equal(t, emotion.Joy, results[0].PredictedEmotion)
	assert.Equal(t, "xyz garbled!!", results[1].Sentence)
	assert.Equal(t, emotion.None, results[1].PredictedEmotion)
	for _, r := range results {
		assert.Equal(t, "STOP", r.FinishReason)
		assert.Equal(t, reply.Text, r.RawResponse)
	}

	require.Len(t, model.calls, 1)
	assert.Equal(t, models.FormatJSONArray, model.calls[0].cfg.Format)
	assert.Equal(t, int32(128), model.calls[0].cfg.MaxOutputTokens)
	assert.Contains(t, model.calls[0].prompt, "1. great news!")
	assert.Contains(t, model.calls[0].prompt, "2. xyz garbled!!")
}

func TestClassifyMany_ChunksPreserveOrder(t *testing.T) {
	model := &fakeModel{replies: []models.Generation{
		batchReply("joy", "sad", "anger"),
		batchReply("fear", "love", "surprise"),
		batchReply("terrified"),
	}}
	c, _ := newTestClassifier(model, Options{MaxBatchSize: 3})

	input := []string{"one", "", "two", "three", "  ", "four", "five", "six", "seven"}
	results, err := c.ClassifyMany(context.Background(), input, "key")
	require.NoError(t, err)
	require.Len(t, results, 7)
	require.Len(t, model.calls, 3)

	expected := []struct {
		sentence string
		label    emotion.Label
	}{
		{"one", emotion.Joy},
		{"two", emotion.Sadness},
		{"three", emotion.Anger},
		{"four", emotion.Fear},
		{"five", emotion.Love},
		{"six", emotion.Surprise},
		{"seven", emotion.Fear},
	}
	for i, e := range expected {
		assert.Equal(t, e.sentence, results[i].Sentence)
		assert.Equal(t, e.label, results[i].PredictedEmotion, "position %d", i)
	}
	assert.Contains(t, model.calls[2].prompt, "1. seven")
	assert.Equal(t, int32(64), model.calls[2].cfg.MaxOutputTokens)
}

func TestClassifyMany_ShortArrayYieldsAbsentLabels(t *testing.T) {
	model := &fakeModel{replies: []models.Generation{{Text: `[{"label":"joy"}]`, FinishReason: "MAX_TOKENS"}}}
	c, _ := newTestClassifier(model, Options{})

	results, err := c.ClassifyMany(context.Background(), []string{"a", "b", "c"}, "key")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, emotion.Joy, results[0].PredictedEmotion)
	assert.Equal(t, emotion.None, results[1].PredictedEmotion)
	assert.Equal(t, emotion.None, results[2].PredictedEmotion)
	assert.Equal(t, "MAX_TOKENS", results[2].FinishReason)
}

func TestClassifyMany_LongArrayIsTruncated(t *testing.T) {
	model := &fakeModel{replies: []models.Generation{batchReply("joy", "fear", "anger")}}
	c, _ := newTestClassifier(model, Options{})

	results, err := c.ClassifyMany(context.Background(), []string{"a", "b"}, "key")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, emotion.Fear, results[1].PredictedEmotion)
}

func TestClassifyMany_ProseReplyFailsTheCall(t *testing.T) {
	model := &fakeModel{replies: []models.Generation{
		batchReply("joy", "joy"),
		{Text: "Sorry, I can't help with that.", FinishReason: "STOP"},
	}}
	c, _ := newTestClassifier(model, Options{MaxBatchSize: 2})

	results, err := c.ClassifyMany(context.Background(), []string{"a", "b", "c"}, "key")
	require.ErrorIs(t, err, ErrExtractionFailure)
	assert.Equal(t, KindExtractionFailure, Kind(err))
	assert.Nil(t, results)
	assert.Len(t, model.calls, 2)
}

func TestClassifyMany_InvalidInput(t *testing.T) {
	model := &fakeModel{}
	c, _ := newTestClassifier(model, Options{})

	_, err := c.ClassifyMany(context.Background(), []string{" ", ""}, "key")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.ClassifyMany(context.Background(), nil, "key")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.ClassifyMany(context.Background(), []string{"hello"}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, model.calls)
}

func TestClassifyMany_UpstreamFailureStopsDispatch(t *testing.T) {
	model := &fakeModel{err: errors.New("quota exceeded")}
	c, _ := newTestClassifier(model, Options{MaxBatchSize: 1})

	_, err := c.ClassifyMany(context.Background(), []string{"a", "b", "c"}, "key")
	assert.ErrorIs(t, err, ErrUpstreamFailure)
	assert.Len(t, model.calls, 1)
}

func TestClassifyMany_OutputLengthMatchesNonEmptyInput(t *testing.T) {
	for n := 1; n <= 12; n++ {
		input := make([]string, n)
		for i := range input {
			input[i] = fmt.Sprintf("sentence %d", i)
		}

		var replies []models.Generation
		for start := 0; start < n; start += 5 {
			size := min(5, n-start)
			labels := make([]string, size)
			for i := range labels {
				labels[i] = "joy"
			}
			replies = append(replies, batchReply(labels...))
		}

		c, _ := newTestClassifier(&fakeModel{replies: replies}, Options{MaxBatchSize: 5})
		results, err := c.ClassifyMany(context.Background(), input, "key")
		require.NoError(t, err)
		require.Len(t, results, n)
		for i, r := range results {
			assert.Equal(t, input[i], r.Sentence)
		}
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindInternal, Kind(errors.New("other")))
	assert.Equal(t, KindExtractionFailure, Kind(fmt.Errorf("chunk 1: %w", ErrExtractionFailure)))
}
