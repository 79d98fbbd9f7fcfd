package models

import "github.com/spacesedan/emotiflow/internal/emotion"

// ClassificationResult is the outcome for one input sentence. PredictedEmotion is
// emotion.None when the model's answer could not be mapped to a canonical label.
type ClassificationResult struct {
	Sentence         string        `json:"sentence"`
	PredictedEmotion emotion.Label `json:"predicted_emotion"`
	FinishReason     string        `json:"finish_reason,omitempty"`
	RawResponse      string        `json:"raw_response"`
}

// Recognized reports whether a canonical label was recovered.
func (r ClassificationResult) Recognized() bool {
	return r.PredictedEmotion.Valid()
}

// ClassificationRequest is the payload consumed from the request topic.
type ClassificationRequest struct {
	RequestID string   `json:"request_id"`
	Sentences []string `json:"sentences"`
}

// ClassificationResponse is published to the results topic, one per request.
type ClassificationResponse struct {
	RequestID string                 `json:"request_id"`
	Results   []ClassificationResult `json:"results,omitempty"`
	Error     string                 `json:"error,omitempty"`
	ErrorKind string                 `json:"error_kind,omitempty"`
}
