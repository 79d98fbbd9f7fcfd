// Package extraction recovers labels from loosely structured model replies.
//
// Hosted models wrap JSON in Markdown fences, prepend commentary or pad the
// reply with whitespace. Each extractor tries an ordered chain of parse
// strategies and only gives up when none of them yields structured data.
package extraction

import (
	"errors"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

// ErrNoArray is returned by ExtractBatch when no JSON array can be recovered.
var ErrNoArray = errors.New("no JSON array found in model response")

// labelKeys are tried in order on every object.
var labelKeys = []string{"label", "predicted_emotion"}

var fencePattern = regexp.MustCompile("(?i)```(?:json)?")

// Entry is one element of a batch reply.
type Entry struct {
	Sentence string
	Label    string
	HasLabel bool
}

type labelStrategy func(text string) (string, bool)

var labelStrategies = []labelStrategy{
	labelFromJSON,
	labelFromFirstObject,
	labelFromFirstToken,
}

// StripFences removes Markdown code fence markers and surrounding whitespace.
func StripFences(raw string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(raw, ""))
}

// ExtractLabel returns the label token found in a single-item reply. The result
// may be empty; deciding whether it is a usable label is left to the caller.
func ExtractLabel(raw string) string {
	text := StripFences(raw)
	for _, strategy := range labelStrategies {
		if label, ok := strategy(text); ok {
			return label
		}
	}
	return ""
}

// ExtractBatch returns the ordered entries of a batch reply.
func ExtractBatch(raw string) ([]Entry, error) {
	text := StripFences(raw)

	elements, ok := parseArray(text)
	if !ok {
		start := strings.Index(text, "[")
		end := strings.LastIndex(text, "]")
		if start < 0 || end <= start {
			return nil, ErrNoArray
		}
		if elements, ok = parseArray(text[start : end+1]); !ok {
			return nil, ErrNoArray
		}
	}

	entries := make([]Entry, len(elements))
	for i, el := range elements {
		entries[i] = parseEntry(el)
	}
	return entries, nil
}

func parseArray(text string) ([]json.RawMessage, bool) {
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elements); err != nil {
		return nil, false
	}
	return elements, true
}

func parseEntry(el json.RawMessage) Entry {
	if strings.TrimSpace(string(el)) == "null" {
		return Entry{}
	}

	var label string
	if err := json.Unmarshal(el, &label); err == nil {
		return Entry{Label: label, HasLabel: true}
	}

	var obj map[string]any
	if err := json.Unmarshal(el, &obj); err != nil || obj == nil {
		return Entry{}
	}

	entry := Entry{}
	if s, ok := obj["sentence"].(string); ok {
		entry.Sentence = s
	}
	entry.Label, entry.HasLabel = labelField(obj)
	return entry
}

func labelFromValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case map[string]any:
		return labelField(val)
	default:
		return "", false
	}
}

func labelField(obj map[string]any) (string, bool) {
	for _, key := range labelKeys {
		if s, ok := obj[key].(string); ok {
			return s, true
		}
	}
	return "", false
}

func labelFromJSON(text string) (string, bool) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return "", false
	}
	return labelFromValue(v)
}

func labelFromFirstObject(text string) (string, bool) {
	obj, ok := firstObject(text)
	if !ok {
		return "", false
	}
	return labelFromJSON(obj)
}

func labelFromFirstToken(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

// firstObject returns the first balanced {...} substring, ignoring braces that
// appear inside JSON strings.
func firstObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
