package prompt

import (
	"fmt"
	"strings"

	"github.com/spacesedan/emotiflow/internal/emotion"
)

var allowedLabels = strings.Join(emotion.Names(), ", ")

// BuildSingle returns the instruction for classifying one sentence.
func BuildSingle(sentence string) string {
	var sb strings.Builder

	sb.WriteString("You are an emotion classifier. Read the English sentence and respond with JSON only.\n")
	fmt.Fprintf(&sb, "Allowed labels: %s.\n", allowedLabels)
	sb.WriteString(`Output format (no extra text, no code fences): {"label": "<one_of_allowed_labels>"}` + "\n")
	fmt.Fprintf(&sb, "Sentence: %s", flatten(sentence))

	return sb.String()
}

// BuildBatch returns the instruction for classifying several sentences in one call.
// Sentences are numbered from 1 and the reply must keep their order.
func BuildBatch(sentences []string) string {
	var sb strings.Builder

	sb.WriteString("You are an emotion classifier. Classify each sentence independently and respond with JSON only.\n")
	fmt.Fprintf(&sb, "Allowed labels: %s.\n", allowedLabels)
	fmt.Fprintf(&sb, "Reply with a JSON array of exactly %d objects, one per sentence, in the same order as the numbered input:\n", len(sentences))
	sb.WriteString(`[{"sentence": "<original text>", "label": "<one_of_allowed_labels>"}]` + "\n")
	sb.WriteString("Do not omit any sentence and keep the sentence text verbatim. Do not add any text or code fences outside the JSON array.\n")
	sb.WriteString("Sentences:")
	for i, s := range sentences {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, flatten(s))
	}

	return sb.String()
}

// flatten collapses internal whitespace so a multi-line sentence stays on its numbered line.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
