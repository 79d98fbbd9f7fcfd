package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"label": "joy"}`, StripFences("```json\n{\"label\": \"joy\"}\n```"))
	assert.Equal(t, `{"label": "joy"}`, StripFences("```JSON\n{\"label\": \"joy\"}```"))
	assert.Equal(t, "[1]", StripFences("  ```\n[1]\n```  "))
	assert.Equal(t, "plain", StripFences("plain"))
}

func TestExtractLabel(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{name: "plain object", raw: `{"label": "joy"}`, expected: "joy"},
		{name: "fenced object", raw: "```json\n{\"label\": \"happy\"}\n```", expected: "happy"},
		{name: "json string", raw: `"anger"`, expected: "anger"},
		{name: "commentary before object", raw: "Sure! Here it is: {\"label\": \"fear\"} hope that helps", expected: "fear"},
		{name: "brace inside string value", raw: `note {"reason": "a } b", "label": "love"} end`, expected: "love"},
		{name: "nested object", raw: `result: {"meta": {"x": 1}, "label": "surprise"}`, expected: "surprise"},
		{name: "predicted_emotion alias", raw: `{"predicted_emotion": "sadness"}`, expected: "sadness"},
		{name: "bare word", raw: "Joy.", expected: "Joy."},
		{name: "object without label falls back to token", raw: `{"emotion": "joy"}`, expected: `{"emotion":`},
		{name: "non string label falls back to token", raw: `{"label": 3}`, expected: `{"label":`},
		{name: "empty", raw: "   ", expected: ""},
		{name: "fences only", raw: "```json\n```", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractLabel(tt.raw))
		})
	}
}

func TestExtractLabel_FencedMatchesUnfenced(t *testing.T) {
	bodies := []string{
		`{"label": "joy"}`,
		`"fear"`,
		`I think {"label": "anger"}`,
		`sadness`,
	}
	for _, body := range bodies {
		fenced := "```json\n" + body + "\n```"
		assert.Equal(t, ExtractLabel(body), ExtractLabel(fenced), body)
	}
}

func TestExtractBatch(t *testing.T) {
	t.Run("plain array", func(t *testing.T) {
		entries, err := ExtractBatch(`[{"sentence":"great news!","label":"joy"},{"sentence":"xyz garbled!!","label":"blah"}]`)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, Entry{Sentence: "great news!", Label: "joy", HasLabel: true}, entries[0])
		assert.Equal(t, Entry{Sentence: "xyz garbled!!", Label: "blah", HasLabel: true}, entries[1])
	})

	t.Run("fenced array with commentary", func(t *testing.T) {
		raw := "Here you go:\n```json\n[{\"sentence\":\"a\",\"label\":\"fear\"}]\n```\nAnything else?"
		entries, err := ExtractBatch(raw)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "fear", entries[0].Label)
	})

	t.Run("array wrapped in an object", func(t *testing.T) {
		entries, err := ExtractBatch(`{"results": [{"label": "love"}, {"label": "joy"}]}`)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "love", entries[0].Label)
		assert.Equal(t, "joy", entries[1].Label)
	})

	t.Run("entries without usable labels", func(t *testing.T) {
		entries, err := ExtractBatch(`[{"sentence":"a"}, {"label": 7}, null, 12, "anger", {"predicted_emotion":"fear"}]`)
		require.NoError(t, err)
		require.Len(t, entries, 6)
		assert.Equal(t, Entry{Sentence: "a"}, entries[0])
		assert.False(t, entries[1].HasLabel)
		assert.False(t, entries[2].HasLabel)
		assert.False(t, entries[3].HasLabel)
		assert.Equal(t, Entry{Label: "anger", HasLabel: true}, entries[4])
		assert.Equal(t, Entry{Label: "fear", HasLabel: true}, entries[5])
	})

	t.Run("empty array", func(t *testing.T) {
		entries, err := ExtractBatch("[]")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("prose without brackets", func(t *testing.T) {
		_, err := ExtractBatch("I am sorry, I cannot classify these sentences.")
		assert.ErrorIs(t, err, ErrNoArray)
	})

	t.Run("brackets that are not an array", func(t *testing.T) {
		_, err := ExtractBatch("see [note] and [ref")
		assert.ErrorIs(t, err, ErrNoArray)
	})

	t.Run("single object is not an array", func(t *testing.T) {
		_, err := ExtractBatch(`{"label": "joy"}`)
		assert.ErrorIs(t, err, ErrNoArray)
	})
}
