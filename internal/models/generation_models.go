package models

type ResponseFormat int

const (
	FormatText ResponseFormat = iota
	FormatJSONObject
	FormatJSONArray
)

func (f ResponseFormat) IsJSON() bool {
	return f == FormatJSONObject || f == FormatJSONArray
}

// GenerationConfig fixes the sampling parameters of one model call.
type GenerationConfig struct {
	Temperature     float32
	MaxOutputTokens int32
	Format          ResponseFormat
}

// Generation is the untouched model output of one call.
type Generation struct {
	Text         string
	FinishReason string
}
