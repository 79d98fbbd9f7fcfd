// Package emotion holds the fixed label taxonomy and the synonym resolver used to
// turn free-form model output into a canonical label.
package emotion

import (
	"strconv"
	"strings"
)

type Label string

const (
	Sadness  Label = "sadness"
	Joy      Label = "joy"
	Love     Label = "love"
	Anger    Label = "anger"
	Fear     Label = "fear"
	Surprise Label = "surprise"

	// None marks an unrecognized or missing label.
	None Label = ""
)

// Labels is ordered; the index of a label matches the emotion dataset's class id.
var Labels = []Label{Sadness, Joy, Love, Anger, Fear, Surprise}

var synonyms = map[string]Label{
	"happy":      Joy,
	"happiness":  Joy,
	"joyful":     Joy,
	"joyous":     Joy,
	"ecstatic":   Joy,
	"delighted":  Joy,
	"cheerful":   Joy,
	"sad":        Sadness,
	"depressed":  Sadness,
	"unhappy":    Sadness,
	"sorrow":     Sadness,
	"grief":      Sadness,
	"angry":      Anger,
	"mad":        Anger,
	"furious":    Anger,
	"rage":       Anger,
	"annoyed":    Anger,
	"irritated":  Anger,
	"afraid":     Fear,
	"scared":     Fear,
	"fearful":    Fear,
	"terrified":  Fear,
	"anxious":    Fear,
	"nervous":    Fear,
	"worried":    Fear,
	"surprised":  Surprise,
	"shocked":    Surprise,
	"astonished": Surprise,
	"amazed":     Surprise,
	"love":       Love,
	"loved":      Love,
	"loving":     Love,
	"affection":  Love,
	"romantic":   Love,
}

func (l Label) String() string {
	return string(l)
}

// Valid reports whether l is one of the canonical labels.
func (l Label) Valid() bool {
	for _, c := range Labels {
		if l == c {
			return true
		}
	}
	return false
}

// Names returns the canonical labels as plain strings, in taxonomy order.
func Names() []string {
	names := make([]string, len(Labels))
	for i, l := range Labels {
		names[i] = string(l)
	}
	return names
}

// Synonyms returns a copy of the synonym table.
func Synonyms() map[string]Label {
	out := make(map[string]Label, len(synonyms))
	for k, v := range synonyms {
		out[k] = v
	}
	return out
}

// Normalize maps a raw model token to a canonical label, or None when nothing
// recognizable is found. Only the first word is considered. Anything outside
// a-z/A-Z separates words, so "joyé" reads as "joy".
func Normalize(raw string) Label {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return ' '
		}
	}, raw)

	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return None
	}

	candidate := Label(fields[0])
	if candidate.Valid() {
		return candidate
	}
	if label, ok := synonyms[fields[0]]; ok {
		return label
	}
	return None
}

// Parse accepts either a canonical label name or its 0-based index in Labels.
// Unlike Normalize it does not resolve synonyms.
func Parse(s string) (Label, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if l := Label(s); l.Valid() {
		return l, true
	}
	idx, err := strconv.Atoi(s)
	if err != nil || idx < 0 || idx >= len(Labels) {
		return None, false
	}
	return Labels[idx], true
}
